package coordinator

import "testing"

func TestTreeBundleRoundTrip(t *testing.T) {
	tb := TreeBundle{
		Trees: []TreeWire{
			{
				SrcDpid: 1, GroupNo: 1, GroupIP: "224.0.1.1",
				Receivers: []uint64{3},
				Edges:     []LinkWire{{SrcDpid: 1, DstDpid: 3}},
			},
		},
		SessionTable: []SessionRow{
			{SrcDpid: 1, GroupNo: 1, DelayBound: 10, BwDemand: 1},
		},
	}

	encoded := encodeTreeBundle(tb)
	got, err := DecodeTreeBundle(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Trees) != 1 || got.Trees[0].SrcDpid != 1 || got.Trees[0].GroupIP != "224.0.1.1" {
		t.Fatalf("unexpected decoded trees: %+v", got.Trees)
	}
	if len(got.Trees[0].Receivers) != 1 || got.Trees[0].Receivers[0] != 3 {
		t.Fatalf("unexpected receivers: %+v", got.Trees[0].Receivers)
	}
	if len(got.SessionTable) != 1 || got.SessionTable[0].DelayBound != 10 {
		t.Fatalf("unexpected session table: %+v", got.SessionTable)
	}
}

func TestLinksRoundTrip(t *testing.T) {
	links := []LinkWire{
		{SrcDpid: 1, SrcPortNo: 2, DstDpid: 3, DstPortNo: 4},
		{SrcDpid: 5, SrcPortNo: 6, DstDpid: 7, DstPortNo: 8},
	}
	got, err := DecodeLinks(encodeLinks(links))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].DstPortNo != 8 {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

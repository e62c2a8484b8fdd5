package session

import "testing"

func TestAddAllocatesGroupNumbersFromOne(t *testing.T) {
	r := NewRegistry()
	s1, err := r.Add(1, []uint64{2, 3}, 50, 10)
	if err != nil {
		t.Fatal(err)
	}
	if s1.GroupNo != 1 {
		t.Fatalf("want group 1, got %d", s1.GroupNo)
	}
	if s1.GroupIP() != "224.0.1.1" {
		t.Fatalf("want 224.0.1.1, got %s", s1.GroupIP())
	}
	s2, err := r.Add(4, []uint64{5}, 50, 10)
	if err != nil {
		t.Fatal(err)
	}
	if s2.GroupNo != 2 {
		t.Fatalf("want group 2, got %d", s2.GroupNo)
	}
}

func TestGroupNumbersAreReusedDensely(t *testing.T) {
	r := NewRegistry()
	r.Add(1, nil, 50, 10)
	s2, _ := r.Add(2, nil, 50, 10)
	if s2.GroupNo != 2 {
		t.Fatalf("want group 2, got %d", s2.GroupNo)
	}
	if err := r.Remove(1); err != nil {
		t.Fatal(err)
	}
	s3, err := r.Add(3, nil, 50, 10)
	if err != nil {
		t.Fatal(err)
	}
	if s3.GroupNo != 1 {
		t.Fatalf("want reclaimed group 1, got %d", s3.GroupNo)
	}
}

func TestAddDuplicateSourceFails(t *testing.T) {
	r := NewRegistry()
	r.Add(1, nil, 50, 10)
	if _, err := r.Add(1, nil, 50, 10); err == nil {
		t.Fatal("expected error for duplicate source")
	}
}

func TestAddRemoveReceiver(t *testing.T) {
	r := NewRegistry()
	r.Add(1, []uint64{2}, 50, 10)
	if err := r.AddReceiver(1, 3); err != nil {
		t.Fatal(err)
	}
	s, _ := r.Get(1)
	if len(s.Receivers) != 2 {
		t.Fatalf("want 2 receivers, got %d", len(s.Receivers))
	}
	if err := r.RemoveReceiver(1, 2); err != nil {
		t.Fatal(err)
	}
	if len(s.Receivers) != 1 {
		t.Fatalf("want 1 receiver after removal, got %d", len(s.Receivers))
	}
}

func TestOperationsOnMissingSessionFail(t *testing.T) {
	r := NewRegistry()
	if err := r.AddReceiver(99, 1); err == nil {
		t.Fatal("expected error for missing session")
	}
	if err := r.RemoveReceiver(99, 1); err == nil {
		t.Fatal("expected error for missing session")
	}
	if err := r.Remove(99); err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestAllIsOrderedBySrcDpid(t *testing.T) {
	r := NewRegistry()
	r.Add(5, nil, 1, 1)
	r.Add(1, nil, 1, 1)
	r.Add(3, nil, 1, 1)
	all := r.All()
	if len(all) != 3 || all[0].SrcDpid != 1 || all[1].SrcDpid != 3 || all[2].SrcDpid != 5 {
		t.Fatalf("unexpected order: %+v", all)
	}
}

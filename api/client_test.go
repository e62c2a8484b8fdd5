package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qosmcast/heatctl/api"
	"github.com/qosmcast/heatctl/coordinator"
	"github.com/qosmcast/heatctl/topology"
)

func TestSwitchesDecodesServerJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/switches" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]topology.Switch{{Dpid: 1, Cid: 0, PortCount: 2}})
	}))
	defer srv.Close()

	got, err := api.Switches(api.NewBaseParams(srv.URL))
	if err != nil {
		t.Fatalf("Switches: %v", err)
	}
	if len(got) != 1 || got[0].Dpid != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestGroupAddSendsExpectedBody(t *testing.T) {
	var seen coordinator.GroupRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/group_add" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&seen)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := api.GroupAdd(api.NewBaseParams(srv.URL), 1, []uint64{2, 3}); err != nil {
		t.Fatalf("GroupAdd: %v", err)
	}
	if seen.Src != 1 || len(seen.Dst) != 2 {
		t.Fatalf("server saw %+v", seen)
	}
}

func TestGroupAddPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := api.GroupAdd(api.NewBaseParams(srv.URL), 1, nil); err == nil {
		t.Fatal("expected error on 400")
	}
}

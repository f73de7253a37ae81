package server

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSearchRoute(t *testing.T) {
	srv, _ := testServer(t)
	seed(t, srv, "the user prefers green tea over coffee in the morning")

	w := doJSON(t, srv, "POST", "/api/search",
		`{"device":"phone-1","user":"ada","query":"green tea coffee morning","mode":"normal","k":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			Explanation string `json:"explanation"`
		} `json:"results"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1; body: %s", resp.Count, w.Body.String())
	}
	if resp.Results[0].Explanation == "" {
		t.Error("result missing its explanation")
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	srv, _ := testServer(t)

	w := doJSON(t, srv, "POST", "/api/search", `{"device":"d","user":"u","query":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, "POST", "/api/search", `{"device":"d","user":"u","query":"x","mode":"psychic"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown mode: status = %d, want 400", w.Code)
	}
}

func TestMaintenanceRoutes(t *testing.T) {
	srv, _ := testServer(t)
	seed(t, srv, "the user prefers green tea")

	for _, pass := range []string{"compress", "merge", "cleanup"} {
		w := doJSON(t, srv, "POST", "/api/maintenance/"+pass, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d; body: %s", pass, w.Code, w.Body.String())
		}
		var snap struct {
			Pass  string `json:"pass"`
			Total int    `json:"total_records"`
		}
		json.Unmarshal(w.Body.Bytes(), &snap)
		if snap.Pass != pass {
			t.Errorf("%s: snapshot pass = %q", pass, snap.Pass)
		}
	}

	w := doJSON(t, srv, "POST", "/api/maintenance/defragment", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown pass: status = %d, want 400", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := testServer(t)
	seed(t, srv, "the user prefers green tea")
	doJSON(t, srv, "POST", "/api/maintenance/compress", "")

	w := doJSON(t, srv, "GET", "/api/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Latest  *struct{} `json:"latest"`
		History []any     `json:"history"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Latest == nil {
		t.Error("no latest snapshot after a maintenance run")
	}
	if len(resp.History) == 0 {
		t.Error("no snapshot history after a maintenance run")
	}
}

func TestExportImportRoutes(t *testing.T) {
	srv, _ := testServer(t)
	id := seed(t, srv, "the user prefers green tea")

	w := doJSON(t, srv, "GET", "/api/owners/phone-1/ada/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d; body: %s", w.Code, w.Body.String())
	}
	bundle := w.Body.String()

	// Import into a second server; the record comes across exactly once.
	srv2, eng2 := testServer(t)
	w = doJSON(t, srv2, "POST", "/api/owners/import", bundle)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Added int `json:"added"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Added != 1 {
		t.Errorf("added = %d, want 1", resp.Added)
	}
	if _, err := eng2.Store().Get(id); err != nil {
		t.Errorf("imported record missing: %v", err)
	}

	w = doJSON(t, srv2, "POST", "/api/owners/import", bundle)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Added != 0 {
		t.Errorf("re-import added = %d, want 0", resp.Added)
	}
}

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/snapshot"
	"github.com/engramdb/engram/internal/store"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device   string   `json:"device"`
		User     string   `json:"user"`
		Text     string   `json:"text"`
		Category string   `json:"category"`
		Modality string   `json:"modality"`
		MediaRef string   `json:"media_ref"`
		Tags     []string `json:"tags"`
		GroupID  string   `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cat, err := store.ParseCategory(req.Category)
	if err != nil {
		s.fail(w, err)
		return
	}

	res, err := s.eng.Ingest(r.Context(), engine.IngestRequest{
		Owner:    store.Owner{Device: req.Device, User: req.User},
		Text:     req.Text,
		Category: cat,
		Modality: store.Modality(req.Modality),
		MediaRef: req.MediaRef,
		Tags:     req.Tags,
		GroupID:  req.GroupID,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device string `json:"device"`
		User   string `json:"user"`
		Query  string `json:"query"`
		Mode   string `json:"mode"`
		K      int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	results, err := s.eng.Retrieve(r.Context(), engine.Query{
		Owner: store.Owner{Device: req.Device, User: req.User},
		Text:  req.Query,
		Mode:  engine.Mode(req.Mode),
		Limit: req.K,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.eng.Store().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	exp, err := s.eng.ExplainWeight(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// lifecycleResponse reports a mutating lifecycle call. Unknown ids are
// no-ops by design, surfaced as found=false rather than an error.
func lifecycleResponse(w http.ResponseWriter, rec *store.Record) {
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "record": rec})
}

func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	rec, err := s.eng.Freeze(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	lifecycleResponse(w, rec)
}

func (s *Server) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	rec, err := s.eng.Unfreeze(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	lifecycleResponse(w, rec)
}

func (s *Server) handleSensitivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level     int  `json:"level"`
		Encrypted bool `json:"encrypted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rec, err := s.eng.MarkSensitive(chi.URLParam(r, "id"), req.Level, req.Encrypted)
	if err != nil {
		s.fail(w, err)
		return
	}
	lifecycleResponse(w, rec)
}

func (s *Server) handleNegate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Corrected string `json:"corrected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := s.eng.Negate(r.Context(), chi.URLParam(r, "id"), req.Corrected)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReinforce(w http.ResponseWriter, r *http.Request) {
	rec, dec, err := s.eng.Reinforce(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec, "decision": dec})
}

func (s *Server) handleModality(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Modality string `json:"modality"`
		MediaRef string `json:"media_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rec, err := s.eng.AttachModality(r.Context(), chi.URLParam(r, "id"), store.Modality(req.Modality), req.MediaRef)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	hard := r.URL.Query().Get("hard") == "true"
	rec, err := s.eng.Delete(chi.URLParam(r, "id"), hard)
	if err != nil {
		s.fail(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "hard": hard, "id": rec.ID})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var stats engine.CycleStats
	pass := chi.URLParam(r, "pass")
	switch pass {
	case "compress":
		stats = s.eng.RunCompression(r.Context())
	case "merge":
		stats = s.eng.RunMerge(r.Context())
	case "cleanup":
		stats = s.eng.RunCleanup(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "unknown maintenance pass: "+pass)
		return
	}
	snap := s.eng.Snapshot(pass, stats)
	if s.sched != nil {
		s.sched.Metrics().Add(snap)
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"latest": s.eng.Snapshot("", engine.CycleStats{}),
		})
		return
	}
	out := map[string]any{"running": s.sched.Running()}
	if latest, ok := s.sched.Metrics().Latest(); ok {
		out["latest"] = latest
	}
	out["history"] = s.sched.Metrics().History()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner := store.Owner{
		Device: chi.URLParam(r, "device"),
		User:   chi.URLParam(r, "user"),
	}
	data, err := snapshot.Export(s.eng.Store(), owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	added, err := snapshot.Import(s.eng.Store(), raw)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added})
}

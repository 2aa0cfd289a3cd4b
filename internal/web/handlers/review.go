package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/epl-xg-merge/internal/audit"
	"github.com/epl-xg-merge/internal/debug"
)

// ReviewStore is the part of audit.Tracker the review endpoints use
type ReviewStore interface {
	LatestRun(ctx context.Context, kind string) (audit.Run, bool, error)
	Candidates(ctx context.Context, runID uuid.UUID, decision string) ([]audit.CandidateRow, error)
	RecordDecision(ctx context.Context, localDebug bool, candidateID int64, decision, decidedBy string) error
}

// ReviewHandler exposes stored runs and lets a reviewer accept or reject
// search candidates
type ReviewHandler struct {
	Store  ReviewStore
	Config *Config
}

// LatestRun returns the most recent run of a kind (merge by default)
func (h *ReviewHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = audit.KindMerge
	}

	run, ok, err := h.Store.LatestRun(r.Context(), kind)
	if err != nil {
		debug.Logger().WithError(err).Error("Latest run lookup failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No run of kind "+kind)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListCandidates lists a run's candidates, pending ones unless decision is given
func (h *ReviewHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run ID")
		return
	}
	decision := r.URL.Query().Get("decision")
	if decision == "" {
		decision = audit.DecisionPending
	}

	rows, err := h.Store.Candidates(r.Context(), runID, decision)
	if err != nil {
		debug.Logger().WithError(err).Error("Candidate listing failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if rows == nil {
		rows = []audit.CandidateRow{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     runID,
		"decision":   decision,
		"candidates": rows,
	})
}

// AcceptCandidate marks a candidate accepted
func (h *ReviewHandler) AcceptCandidate(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, audit.DecisionAccepted)
}

// RejectCandidate marks a candidate rejected
func (h *ReviewHandler) RejectCandidate(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, audit.DecisionRejected)
}

func (h *ReviewHandler) decide(w http.ResponseWriter, r *http.Request, decision string) {
	if !h.Config.Features.ReviewEnabled {
		writeError(w, http.StatusForbidden, "Feature disabled")
		return
	}

	candidateID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid candidate ID")
		return
	}

	// Body is optional
	var request struct {
		DecidedBy string `json:"decided_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if request.DecidedBy == "" {
		request.DecidedBy = clientInfo(r)
	}

	err = h.Store.RecordDecision(r.Context(), false, candidateID, decision, request.DecidedBy)
	switch {
	case errors.Is(err, audit.ErrCandidateNotFound):
		writeError(w, http.StatusNotFound, "Candidate not found")
		return
	case err != nil:
		debug.Logger().WithError(err).WithField("candidate_id", candidateID).Error("Recording decision failed")
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidate_id": candidateID,
		"decision":     decision,
		"decided_by":   request.DecidedBy,
	})
}

// clientInfo identifies an anonymous reviewer
func clientInfo(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

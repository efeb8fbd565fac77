package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// ApprovalDecisionRequest is the body of the approval endpoint (spec.md §6).
type ApprovalDecisionRequest struct {
	SessionID  string `json:"session_id"`
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"` // "approve" | "reject"
}

// respondApproval handles POST /approval: 200 on an accepted decision,
// 404 if approval_id is unknown or already resolved, 410 if it expired
// before this decision arrived.
func (s *Server) respondApproval(w http.ResponseWriter, r *http.Request) {
	var req ApprovalDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if req.ApprovalID == "" || (req.Decision != "approve" && req.Decision != "reject") {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "approval_id and decision (approve|reject) are required")
		return
	}

	gate := s.proc.Gate()
	if _, pending := gate.Pending(req.ApprovalID); pending {
		gate.Respond(req.ApprovalID, req.Decision == "approve")
		writeSuccess(w)
		return
	}

	if status, resolved := gate.LastStatus(req.ApprovalID); resolved {
		if status == types.ApprovalExpired {
			writeError(w, http.StatusGone, ErrCodeNotFound, "approval expired")
			return
		}
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "approval already resolved")
		return
	}

	writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown approval_id")
}

// PlanResponse is the read-only plan snapshot returned for UI observation.
type PlanResponse struct {
	Plan *types.Plan `json:"plan"`
}

// getPlan handles GET /plan/{sessionID}: the current research plan for
// the session, or a null plan if the worker hasn't created one yet.
func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "sessionID required")
		return
	}

	plan, err := s.proc.LoadPlan(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PlanResponse{Plan: plan})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	tpotel "github.com/Strob0t/TaskPilot/internal/adapter/otel"
	"github.com/Strob0t/TaskPilot/internal/domain/decision"
	"github.com/Strob0t/TaskPilot/internal/domain/destination"
	"github.com/Strob0t/TaskPilot/internal/domain/task"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
	"github.com/Strob0t/TaskPilot/internal/port/messagequeue"
	"github.com/Strob0t/TaskPilot/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Router     *service.Router
	Recorder   *service.Recorder
	Feedback   *service.FeedbackCollector
	Calibrator *service.Calibrator
	Queue      messagequeue.Queue // nil when events are disabled
	RulesFile  string
}

type decideRequest struct {
	Task       task.Task `json:"task"`
	Candidates []string  `json:"candidates,omitempty"` // destination names; empty = full catalog
	DryRun     bool      `json:"dry_run,omitempty"`    // skip recording
}

// Decide routes a task and records the resulting decision.
// With dry_run set the decision is returned but not persisted.
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decideRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Task.ID, "task.id") {
		return
	}

	candidates, ok := h.resolveCandidates(w, req.Candidates)
	if !ok {
		return
	}

	var d *decision.RoutingDecision
	if req.DryRun {
		d = h.Router.Decide(r.Context(), &req.Task, candidates)
	} else {
		var err error
		d, err = service.RouteAndRecord(r.Context(), h.Router, h.Recorder, &req.Task, candidates)
		if err != nil {
			writeInternalError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, d)
}

type suggestRequest struct {
	Task       task.Task `json:"task"`
	Candidates []string  `json:"candidates,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

type suggestResponse struct {
	Suggestions []decision.Alternative `json:"suggestions"`
}

// Suggest returns the top-N candidate destinations for a task without
// making or recording a decision.
func (h *Handlers) Suggest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[suggestRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Task.ID, "task.id") {
		return
	}

	candidates, ok := h.resolveCandidates(w, req.Candidates)
	if !ok {
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 3
	}

	suggestions := h.Router.Suggest(r.Context(), &req.Task, candidates, limit)
	writeJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

// resolveCandidates maps destination names to the active catalog entries.
// An unknown name is a client error.
func (h *Handlers) resolveCandidates(w http.ResponseWriter, names []string) ([]destination.Destination, bool) {
	if len(names) == 0 {
		return nil, true
	}
	rs := h.Router.RuleSet()
	out := make([]destination.Destination, 0, len(names))
	for _, name := range names {
		dest, ok := rs.Destination(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown destination: "+name)
			return nil, false
		}
		out = append(out, *dest)
	}
	return out, true
}

type feedbackRequest struct {
	WasGoodMatch       bool   `json:"was_good_match"`
	QualityRating      int    `json:"quality_rating,omitempty"`
	ShouldHaveRoutedTo string `json:"should_have_routed_to,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

type feedbackResponse struct {
	ID string `json:"id"`
}

// SubmitFeedback attaches outcome feedback to the latest decision for a task.
func (h *Handlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	req, ok := readJSON[feedbackRequest](w, r)
	if !ok {
		return
	}

	id, err := h.Feedback.Collect(r.Context(), taskID, decision.Feedback{
		WasGoodMatch:       req.WasGoodMatch,
		QualityRating:      req.QualityRating,
		ShouldHaveRoutedTo: req.ShouldHaveRoutedTo,
		Notes:              req.Notes,
	})
	if err != nil {
		var fbErr *service.FeedbackError
		if errors.As(err, &fbErr) {
			err = fbErr.Unwrap()
		}
		writeDomainError(w, err, "no decision recorded for task "+taskID)
		return
	}

	// A new feedback record makes the cached calibration report stale.
	h.Calibrator.Invalidate(r.Context())

	writeJSON(w, http.StatusCreated, feedbackResponse{ID: id})
}

// ListFeedback returns all feedback submitted for a task, oldest first.
func (h *Handlers) ListFeedback(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	items, err := h.Feedback.ListForTask(r.Context(), taskID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": items})
}

type historyEntry struct {
	decision.RoutingDecision
	// Status is derived, never stored: "feedback_received" once any
	// feedback links to the decision, "recorded" otherwise.
	Status string `json:"status"`
}

// TaskHistory returns all recorded decisions for a task, most recent first,
// each annotated with its derived lifecycle status.
func (h *Handlers) TaskHistory(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	decisions, err := h.Recorder.History(r.Context(), taskID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	feedback, err := h.Feedback.ListForTask(r.Context(), taskID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	judged := make(map[string]bool, len(feedback))
	for _, fb := range feedback {
		judged[fb.DecisionID] = true
	}

	entries := make([]historyEntry, 0, len(decisions))
	for _, d := range decisions {
		status := "recorded"
		if judged[d.ID] {
			status = "feedback_received"
		}
		entries = append(entries, historyEntry{RoutingDecision: d, Status: status})
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": entries})
}

// LatestDecision returns the most recent decision for a task.
func (h *Handlers) LatestDecision(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	d, err := h.Recorder.Latest(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, err, "no decision recorded for task "+taskID)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// QueryDecisions returns decisions matching the query parameters,
// most recent first.
func (h *Handlers) QueryDecisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := decisionstore.Filter{
		TaskID:      q.Get("task_id"),
		Destination: q.Get("destination"),
		Strategy:    decision.Strategy(q.Get("strategy")),
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		f.Since = ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC 3339")
			return
		}
		f.Until = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	decisions, err := h.Recorder.Query(r.Context(), f)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

// CalibrationReport returns the calibration report, served from cache
// when fresh.
func (h *Handlers) CalibrationReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Calibrator.Report(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RecomputeCalibration bypasses the cache and recomputes the report.
func (h *Handlers) RecomputeCalibration(w http.ResponseWriter, r *http.Request) {
	h.Calibrator.Invalidate(r.Context())
	report, err := h.Calibrator.Report(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type reloadResponse struct {
	Rules        int    `json:"rules"`
	Destinations int    `json:"destinations"`
	Default      string `json:"default_destination,omitempty"`
}

// ReloadRules re-reads the rules file and atomically installs the new
// rule set. A file that fails validation leaves the active set serving.
func (h *Handlers) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx, span := tpotel.StartReloadSpan(r.Context())
	defer span.End()

	data, err := os.ReadFile(h.RulesFile)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if err := h.Router.Reload(data); err != nil {
		writeDomainError(w, err, "rule set rejected")
		return
	}

	rs := h.Router.RuleSet()
	resp := reloadResponse{
		Rules:        rs.Len(),
		Destinations: len(rs.Destinations()),
		Default:      rs.DefaultDestination(),
	}
	if h.Queue != nil {
		h.publishRulesReloaded(ctx, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// publishRulesReloaded emits a rules.reloaded event. Publish failures are
// logged, never surfaced: the reload itself already succeeded.
func (h *Handlers) publishRulesReloaded(ctx context.Context, resp reloadResponse) {
	data, err := json.Marshal(messagequeue.RulesReloadedPayload{
		Rules:        resp.Rules,
		Destinations: resp.Destinations,
		Default:      resp.Default,
	})
	if err != nil {
		slog.Error("marshal rules.reloaded payload", "error", err)
		return
	}
	if err := h.Queue.Publish(ctx, messagequeue.SubjectRulesReloaded, data); err != nil {
		slog.Warn("publish rules.reloaded", "error", err)
	}
}

// Health reports service liveness and queue connectivity.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok"}
	if h.Queue != nil {
		status["queue_connected"] = h.Queue.IsConnected()
	}
	writeJSON(w, http.StatusOK, status)
}

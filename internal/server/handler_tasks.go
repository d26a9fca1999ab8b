package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/slaq/pkg/model"
)

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}

	task, err := s.scheduler.Enqueue(r.Context(), req)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, task)
}

// handleDequeueNext claims the next eligible task for a worker. An
// empty queue is not an error: 204 tells the worker to back off and
// poll again.
func (s *Server) handleDequeueNext(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.DequeueRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid JSON body: "+err.Error()))
			return
		}
	}

	task, err := s.scheduler.DequeueNext(r.Context(), req.TenantID)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	if task == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	task, err := s.scheduler.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id))
			return
		}
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.TenantID = q.Get("tenant_id")
	opts.Status = q.Get("status")
	opts.Clamp()

	tasks, total, err := s.scheduler.ListTasks(r.Context(), opts)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondList(w, reqID, tasks, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(tasks) < total,
	})
}

func (s *Server) handleSucceed(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req model.CompleteRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid JSON body: "+err.Error()))
			return
		}
	}

	task, err := s.scheduler.MarkSucceeded(r.Context(), id, req.ActualCost)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req model.FailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if req.Error == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("error is required"))
		return
	}

	task, err := s.scheduler.MarkFailed(r.Context(), id, req.Error)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req model.BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if req.Reason == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("reason is required"))
		return
	}

	task, err := s.scheduler.MarkBlocked(r.Context(), id, req.Reason)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	task, err := s.scheduler.Unblock(r.Context(), id)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	stats, err := s.scheduler.QueueStats(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, stats)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/p2pml/training-dispatcher/common/dispatch"
	"github.com/p2pml/training-dispatcher/common/utils"
	"github.com/p2pml/training-dispatcher/common/work"
)

// dispatcher is the orchestration surface the handler drives.
type dispatcher interface {
	DispatchTask(ctx context.Context, req dispatch.Request) (*dispatch.Summary, error)
}

// TaskHandler exposes task dispatch and inspection endpoints.
type TaskHandler struct {
	service dispatcher
	manager *work.TaskManager
	router  *chi.Mux
}

// NewTaskHandler creates the task endpoints.
func NewTaskHandler(service dispatcher, manager *work.TaskManager) *TaskHandler {
	h := &TaskHandler{
		service: service,
		manager: manager,
	}

	r := chi.NewRouter()
	r.Post("/{taskID}/dispatch", h.handleDispatch)
	r.Get("/{taskID}", h.handleGetTask)
	r.Get("/", h.handleListRunning)

	h.router = r
	return h
}

// Router returns the handler's sub-router.
func (h *TaskHandler) Router() *chi.Mux {
	return h.router
}

type dispatchRequestBody struct {
	ManifestURL string   `json:"manifest_url"`
	ModelURL    string   `json:"model_url"`
	Workers     []string `json:"workers"`
}

// handleDispatch accepts a dispatch request and runs it asynchronously.
// The summary is retrievable from GET /{taskID} once the task finishes.
func (h *TaskHandler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if strings.TrimSpace(taskID) == "" {
		utils.WriteError(w, http.StatusBadRequest, "task id is required")
		return
	}

	var body dispatchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.ManifestURL == "" || body.ModelURL == "" {
		utils.WriteError(w, http.StatusBadRequest, "manifest_url and model_url are required")
		return
	}
	if len(body.Workers) == 0 {
		utils.WriteError(w, http.StatusBadRequest, "at least one worker is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Early conflict check; the SetNX guard in the manager is authoritative.
	if running, err := h.manager.IsRunning(ctx, taskID); err == nil && running {
		utils.WriteError(w, http.StatusConflict, "task is already running")
		return
	}

	req := dispatch.Request{
		TaskID:      taskID,
		ManifestURL: body.ManifestURL,
		ModelURL:    body.ModelURL,
		Workers:     body.Workers,
	}

	// The dispatch outlives the HTTP request.
	go func() {
		ctx := context.Background()
		if _, err := h.service.DispatchTask(ctx, req); err != nil {
			log.Error().Err(err).Str("taskID", taskID).Msg("Task dispatch failed")
		}
	}()

	utils.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id": taskID,
		"status":  "dispatching",
	})
}

// handleGetTask reports a task's running state and, when finished, its
// dispatch summary.
func (h *TaskHandler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	running, err := h.manager.IsRunning(ctx, taskID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]interface{}{
		"task_id": taskID,
		"running": running,
	}

	if data, err := h.manager.GetSummary(ctx, taskID); err == nil && data != nil {
		var summary dispatch.Summary
		if err := json.Unmarshal(data, &summary); err == nil {
			response["summary"] = summary
		}
	}

	if !running && response["summary"] == nil {
		utils.WriteError(w, http.StatusNotFound, "task not found")
		return
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// handleListRunning lists the ids of all running tasks.
func (h *TaskHandler) handleListRunning(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	taskIDs, err := h.manager.ListRunning(ctx)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": taskIDs,
	})
}

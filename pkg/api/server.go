// Package api is the thin HTTP wrapper around the coordinator. It carries
// no logic of its own: every route delegates to a coordinator operation
// and renders the structured result as JSON.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/psantana5/taskgrid/pkg/coordinator"
	"github.com/psantana5/taskgrid/pkg/models"
)

// Handler serves the coordinator's caller-facing API
type Handler struct {
	coord *coordinator.Coordinator
}

// NewHandler creates an API handler over a coordinator
func NewHandler(c *coordinator.Coordinator) *Handler {
	return &Handler{coord: c}
}

// RegisterRoutes binds all API routes on the router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/workers/register", h.RegisterWorker).Methods("POST")
	r.HandleFunc("/workers/{id}/heartbeat", h.WorkerHeartbeat).Methods("POST")
	r.HandleFunc("/workers", h.ListWorkers).Methods("GET")

	r.HandleFunc("/tasks", h.SubmitTask).Methods("POST")
	r.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	r.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/tasks/{id}/retry", h.RetryTask).Methods("POST")
	r.HandleFunc("/tasks/{id}/cancel", h.CancelTask).Methods("POST")
	r.HandleFunc("/tasks/{id}/start", h.StartTask).Methods("POST")
	r.HandleFunc("/tasks/{id}/result", h.TaskResult).Methods("POST")
	r.HandleFunc("/tasks/{id}/canceled", h.TaskCanceled).Methods("GET")

	r.HandleFunc("/status", h.SystemStatus).Methods("GET")
}

// RegisterWorker handles POST /workers/register
func (h *Handler) RegisterWorker(w http.ResponseWriter, r *http.Request) {
	var worker models.Worker
	if err := json.NewDecoder(r.Body).Decode(&worker); err != nil {
		writeError(w, http.StatusBadRequest, "invalid worker payload: "+err.Error())
		return
	}

	if err := h.coord.RegisterWorker(&worker); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"worker_id": worker.ID, "status": "registered"})
}

// WorkerHeartbeat handles POST /workers/{id}/heartbeat
func (h *Handler) WorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.coord.Heartbeat(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"worker_id": id, "status": "ok"})
}

// ListWorkers handles GET /workers
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"workers": h.coord.ListWorkers()})
}

// SubmitTask handles POST /tasks. Scheduling failures come back as a 200
// with the failed task attached; the submission itself succeeded.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task payload: "+err.Error())
		return
	}

	task, err := h.coord.SubmitTask(r.Context(), req)
	if err != nil {
		log.Printf("[API] Submit task: %v", err)
		writeJSON(w, http.StatusBadGateway, task)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListTasks handles GET /tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": h.coord.ListActiveTasks()})
}

// GetTask handles GET /tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	info := h.coord.GetTaskStatus(mux.Vars(r)["id"])
	status := http.StatusOK
	if !info.Found {
		status = http.StatusNotFound
	}
	writeJSON(w, status, info)
}

// RetryTask handles POST /tasks/{id}/retry
func (h *Handler) RetryTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.coord.RetryTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, coordinator.ErrTaskNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CancelTask handles POST /tasks/{id}/cancel
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.coord.CancelTask(id); err != nil {
		status := http.StatusConflict
		if errors.Is(err, coordinator.ErrTaskNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "canceled"})
}

// StartTask handles POST /tasks/{id}/start, reported by workers
func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkerID string `json:"worker_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	id := mux.Vars(r)["id"]
	if err := h.coord.StartTask(id, body.WorkerID); err != nil {
		status := http.StatusConflict
		if errors.Is(err, coordinator.ErrTaskNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "processing"})
}

// TaskResult handles POST /tasks/{id}/result, reported by workers
func (h *Handler) TaskResult(w http.ResponseWriter, r *http.Request) {
	var res models.TaskResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid result payload: "+err.Error())
		return
	}
	res.TaskID = mux.Vars(r)["id"]

	if err := h.coord.HandleResult(res); err != nil {
		status := http.StatusConflict
		if errors.Is(err, coordinator.ErrTaskNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": res.TaskID, "status": string(res.Status)})
}

// TaskCanceled handles GET /tasks/{id}/canceled, polled by workers
func (h *Handler) TaskCanceled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": h.coord.TaskCanceled(mux.Vars(r)["id"])})
}

// SystemStatus handles GET /status
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.GetSystemStatus())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

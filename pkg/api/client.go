package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/psantana5/taskgrid/pkg/coordinator"
	"github.com/psantana5/taskgrid/pkg/models"
	"github.com/psantana5/taskgrid/pkg/retry"
)

// Client talks to a remote coordinator. It satisfies the worker runtime's
// Reporter interface so worker machines can report over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	retry   retry.Config
}

// NewClient creates a coordinator API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   retry.DefaultConfig(),
	}
}

// RegisterWorker registers this machine's capability descriptor, retrying
// through transient coordinator unavailability
func (c *Client) RegisterWorker(ctx context.Context, worker *models.Worker) error {
	return retry.Do(ctx, c.retry, func() error {
		return c.post("/workers/register", worker, nil)
	})
}

// Heartbeat refreshes the worker's liveness timestamp
func (c *Client) Heartbeat(workerID string) error {
	return c.post("/workers/"+workerID+"/heartbeat", nil, nil)
}

// SubmitTask submits a task and returns its descriptor
func (c *Client) SubmitTask(req models.TaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.post("/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTaskStatus fetches one task's status view. Unknown IDs come back as
// Found=false, mirroring the coordinator's lookup semantics.
func (c *Client) GetTaskStatus(taskID string) (*coordinator.TaskStatusInfo, error) {
	resp, err := c.http.Get(c.baseURL + "/tasks/" + taskID)
	if err != nil {
		return nil, fmt.Errorf("GET /tasks/%s: %w", taskID, err)
	}
	defer resp.Body.Close()

	var info coordinator.TaskStatusInfo
	if resp.StatusCode == http.StatusNotFound {
		// Not-found still carries a structured body
		_ = json.NewDecoder(resp.Body).Decode(&info)
		info.Found = false
		info.TaskID = taskID
		return &info, nil
	}
	if err := decodeResponse("/tasks/"+taskID, resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListActiveTasks fetches the in-flight task snapshot
func (c *Client) ListActiveTasks() ([]*models.Task, error) {
	var out struct {
		Tasks []*models.Task `json:"tasks"`
	}
	if err := c.get("/tasks", &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// RetryTask explicitly retries a failed task
func (c *Client) RetryTask(taskID string) (*models.Task, error) {
	var task models.Task
	if err := c.post("/tasks/"+taskID+"/retry", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask cancels a live task
func (c *Client) CancelTask(taskID string) error {
	return c.post("/tasks/"+taskID+"/cancel", nil, nil)
}

// GetSystemStatus fetches aggregate coordinator state
func (c *Client) GetSystemStatus() (*coordinator.SystemStatus, error) {
	var status coordinator.SystemStatus
	if err := c.get("/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListWorkers fetches the worker registry snapshot
func (c *Client) ListWorkers() ([]*models.Worker, error) {
	var out struct {
		Workers []*models.Worker `json:"workers"`
	}
	if err := c.get("/workers", &out); err != nil {
		return nil, err
	}
	return out.Workers, nil
}

// StartTask implements worker.Reporter over HTTP
func (c *Client) StartTask(taskID, workerID string) error {
	return c.post("/tasks/"+taskID+"/start", map[string]string{"worker_id": workerID}, nil)
}

// HandleResult implements worker.Reporter over HTTP
func (c *Client) HandleResult(res models.TaskResult) error {
	return c.post("/tasks/"+res.TaskID+"/result", res, nil)
}

// TaskCanceled implements worker.Reporter over HTTP. Polling failures read
// as not-canceled; the task keeps running rather than aborting on a blip.
func (c *Client) TaskCanceled(taskID string) bool {
	var out struct {
		Canceled bool `json:"canceled"`
	}
	if err := c.get("/tasks/"+taskID+"/canceled", &out); err != nil {
		return false
	}
	return out.Canceled
}

func (c *Client) post(path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(path, resp, out)
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(path, resp, out)
}

func decodeResponse(path string, resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s (HTTP %d)", path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

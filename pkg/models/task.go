package models

import (
	"time"
)

// TaskType classifies a task and determines which queue carries it
type TaskType string

const (
	TaskTypeVideoRender  TaskType = "video_render"
	TaskTypeAudioProcess TaskType = "audio_process"
	TaskTypeImageEdit    TaskType = "image_edit"
	TaskTypeAIInference  TaskType = "ai_inference"
	TaskTypeGeneral      TaskType = "general"
)

// Queue names for the broker, one per task family
const (
	QueueVideo   = "video_processing"
	QueueAudio   = "audio_processing"
	QueueImage   = "image_processing"
	QueueAI      = "ai_processing"
	QueueGeneral = "general"
)

// QueueForType maps a task type to its broker queue name
func QueueForType(t TaskType) string {
	switch t {
	case TaskTypeVideoRender:
		return QueueVideo
	case TaskTypeAudioProcess:
		return QueueAudio
	case TaskTypeImageEdit:
		return QueueImage
	case TaskTypeAIInference:
		return QueueAI
	default:
		return QueueGeneral
	}
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"    // Submitted, not yet assigned
	TaskStatusAssigned   TaskStatus = "assigned"   // Assigned to a worker, enqueued
	TaskStatusProcessing TaskStatus = "processing" // Handler actively running
	TaskStatusCompleted  TaskStatus = "completed"  // Handler finished successfully
	TaskStatusFailed     TaskStatus = "failed"     // Scheduling or execution failure
	TaskStatusCanceled   TaskStatus = "canceled"   // Explicitly canceled by caller
)

// Priority levels, 1 is highest
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// DefaultMaxRetries bounds explicit task retries
const DefaultMaxRetries = 3

// Task represents a unit of work routed to a worker
type Task struct {
	ID                   string                 `json:"id"`
	Type                 TaskType               `json:"type"`
	Priority             int                    `json:"priority"` // 1=high .. 3=low
	RequiredCapabilities []string               `json:"required_capabilities,omitempty"`
	EstimatedDuration    time.Duration          `json:"estimated_duration"` // ETA display only, not enforced
	InputData            map[string]interface{} `json:"input_data,omitempty"`
	OutputPath           string                 `json:"output_path,omitempty"`
	Status               TaskStatus             `json:"status"`
	AssignedWorker       string                 `json:"assigned_worker,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	StartedAt            *time.Time             `json:"started_at,omitempty"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
	Error                string                 `json:"error,omitempty"`
	RetryCount           int                    `json:"retry_count"`
	MaxRetries           int                    `json:"max_retries"`
}

// TaskRequest represents a request to submit a new task
type TaskRequest struct {
	ID                   string                 `json:"id,omitempty"` // generated when empty
	Type                 TaskType               `json:"type"`
	Priority             int                    `json:"priority,omitempty"`
	RequiredCapabilities []string               `json:"required_capabilities,omitempty"`
	EstimatedDuration    time.Duration          `json:"estimated_duration,omitempty"`
	InputData            map[string]interface{} `json:"input_data,omitempty"`
	OutputPath           string                 `json:"output_path,omitempty"`
	MaxRetries           int                    `json:"max_retries,omitempty"`
}

// TaskResult is reported by a worker when a handler finishes
type TaskResult struct {
	TaskID      string     `json:"task_id"`
	WorkerID    string     `json:"worker_id"`
	Status      TaskStatus `json:"status"` // completed or failed
	OutputPath  string     `json:"output_path,omitempty"`
	Error       string     `json:"error,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
}

// Clone returns a shallow copy safe to hand to callers
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

package models

import (
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskStatus
		to      TaskStatus
		wantErr bool
	}{
		{"pending to assigned", TaskStatusPending, TaskStatusAssigned, false},
		{"pending to failed", TaskStatusPending, TaskStatusFailed, false},
		{"pending to canceled", TaskStatusPending, TaskStatusCanceled, false},
		{"assigned to processing", TaskStatusAssigned, TaskStatusProcessing, false},
		{"assigned to failed", TaskStatusAssigned, TaskStatusFailed, false},
		{"processing to completed", TaskStatusProcessing, TaskStatusCompleted, false},
		{"processing to failed", TaskStatusProcessing, TaskStatusFailed, false},
		{"processing to canceled", TaskStatusProcessing, TaskStatusCanceled, false},
		{"failed to pending on retry", TaskStatusFailed, TaskStatusPending, false},

		{"pending to processing skips assigned", TaskStatusPending, TaskStatusProcessing, true},
		{"pending to completed", TaskStatusPending, TaskStatusCompleted, true},
		{"assigned to completed skips processing", TaskStatusAssigned, TaskStatusCompleted, true},
		{"completed is terminal", TaskStatusCompleted, TaskStatusPending, true},
		{"canceled is terminal", TaskStatusCanceled, TaskStatusPending, true},
		{"failed cannot go assigned directly", TaskStatusFailed, TaskStatusAssigned, true},
		{"completed cannot fail", TaskStatusCompleted, TaskStatusFailed, true},
		{"unknown source", TaskStatus("bogus"), TaskStatusPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateTransition(%s, %s) expected error, got nil", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateTransition(%s, %s) unexpected error: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	if !IsTerminalStatus(TaskStatusCompleted) {
		t.Error("completed should be terminal")
	}
	if !IsTerminalStatus(TaskStatusCanceled) {
		t.Error("canceled should be terminal")
	}
	// failed is re-enterable via retry, so it is not terminal
	if IsTerminalStatus(TaskStatusFailed) {
		t.Error("failed should not be terminal")
	}
	if IsTerminalStatus(TaskStatusProcessing) {
		t.Error("processing should not be terminal")
	}
}

func TestCanRetry(t *testing.T) {
	if !CanRetry(TaskStatusFailed) {
		t.Error("failed tasks should be retryable")
	}
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusAssigned, TaskStatusProcessing, TaskStatusCompleted, TaskStatusCanceled} {
		if CanRetry(s) {
			t.Errorf("%s should not be retryable", s)
		}
	}
}

func TestQueueForType(t *testing.T) {
	tests := []struct {
		taskType TaskType
		queue    string
	}{
		{TaskTypeVideoRender, QueueVideo},
		{TaskTypeAudioProcess, QueueAudio},
		{TaskTypeImageEdit, QueueImage},
		{TaskTypeAIInference, QueueAI},
		{TaskTypeGeneral, QueueGeneral},
		{TaskType("unknown_custom_type"), QueueGeneral},
	}
	for _, tt := range tests {
		if got := QueueForType(tt.taskType); got != tt.queue {
			t.Errorf("QueueForType(%s) = %s, want %s", tt.taskType, got, tt.queue)
		}
	}
}

func TestWorkerHasCapabilities(t *testing.T) {
	w := &Worker{SpecializedSoftware: []string{"video_render", "gpu_accel"}}

	if !w.HasCapabilities(nil) {
		t.Error("no requirements should always match")
	}
	if !w.HasCapabilities([]string{"video_render"}) {
		t.Error("advertised capability should match")
	}
	if !w.HasCapabilities([]string{"video_render", "gpu_accel"}) {
		t.Error("all advertised capabilities should match")
	}
	if w.HasCapabilities([]string{"video_render", "audio_master"}) {
		t.Error("partial match should fail")
	}

	bare := &Worker{}
	if bare.HasCapabilities([]string{"anything"}) {
		t.Error("worker without software should not match requirements")
	}
}

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskExtraction)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskExtraction, task.Type)
	assert.Equal(t, StatusPending, task.Status)
	assert.Zero(t, task.Progress)
	assert.WithinDuration(t, time.Now(), task.CreatedAt, time.Second)
	assert.Nil(t, task.CompletedAt)
	assert.Nil(t, task.Error)
	require.NotNil(t, task.Metadata)

	other := NewTask(TaskExtraction)
	assert.NotEqual(t, task.ID, other.ID)
}

func TestTaskTerminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			task := ProcessingTask{Status: tt.status}
			assert.Equal(t, tt.want, task.Terminal())
		})
	}
}

func TestTaskCancelled(t *testing.T) {
	assert.True(t, ProcessingTask{
		Status: StatusFailed,
		Error:  &TaskError{Reason: ReasonCancelled, Message: "task cancelled"},
	}.Cancelled())

	assert.False(t, ProcessingTask{
		Status: StatusFailed,
		Error:  &TaskError{Reason: ReasonFailed, Message: "boom"},
	}.Cancelled())

	assert.False(t, ProcessingTask{Status: StatusFailed}.Cancelled())
	assert.False(t, ProcessingTask{Status: StatusCompleted}.Cancelled())
}

func TestTaskClone(t *testing.T) {
	at := time.Now()
	original := ProcessingTask{
		ID:          "t1",
		Status:      StatusFailed,
		CompletedAt: &at,
		Error:       &TaskError{Reason: ReasonFailed, Message: "boom"},
		Metadata:    map[string]interface{}{MetaDocumentID: "doc-1"},
	}

	snapshot := original.clone()
	*snapshot.CompletedAt = at.Add(time.Hour)
	snapshot.Error.Message = "changed"
	snapshot.Metadata[MetaDocumentID] = "doc-2"

	assert.Equal(t, at, *original.CompletedAt)
	assert.Equal(t, "boom", original.Error.Message)
	assert.Equal(t, "doc-1", original.Metadata[MetaDocumentID])
}

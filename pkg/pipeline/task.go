package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// TaskType names the kind of work a task asks for
type TaskType string

const (
	TaskExtraction TaskType = "extraction"
	TaskOCR        TaskType = "ocr"
	TaskAnalysis   TaskType = "analysis"
	TaskUpload     TaskType = "upload"
)

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Error reasons distinguish a cancelled task from a genuine failure,
// both of which end in StatusFailed
const (
	ReasonCancelled = "cancelled"
	ReasonFailed    = "failed"
)

// TaskError describes why a task ended in StatusFailed
type TaskError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Well-known metadata keys used by the document handlers
const (
	MetaDocumentID   = "document_id"
	MetaDocumentName = "document_name"
	MetaCaseID       = "case_id"
	MetaText         = "text"
)

// ProcessingTask is one unit of work moving through the queue. Copies
// handed to subscribers and returned from queries are snapshots; only
// the queue mutates the live record.
type ProcessingTask struct {
	ID          string                 `json:"id"`
	Type        TaskType               `json:"type"`
	Status      TaskStatus             `json:"status"`
	Stage       string                 `json:"stage,omitempty"`
	Progress    float64                `json:"progress"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Error       *TaskError             `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewTask creates a pending task of the given type
func NewTask(taskType TaskType) ProcessingTask {
	return ProcessingTask{
		ID:        uuid.New().String(),
		Type:      taskType,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}

// Terminal reports whether the task has finished, successfully or not
func (t ProcessingTask) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Cancelled reports whether the task failed because it was cancelled
func (t ProcessingTask) Cancelled() bool {
	return t.Status == StatusFailed && t.Error != nil && t.Error.Reason == ReasonCancelled
}

// clone returns a snapshot safe to hand outside the queue's lock
func (t ProcessingTask) clone() ProcessingTask {
	out := t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		out.CompletedAt = &at
	}
	if t.Error != nil {
		e := *t.Error
		out.Error = &e
	}
	if t.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

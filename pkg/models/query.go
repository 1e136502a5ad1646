package models

import (
	"encoding/json"
	"time"
)

// TaskType classifies a query so the router can pick a provider chain.
type TaskType string

const (
	TaskUserChat      TaskType = "user_chat"
	TaskRequirement   TaskType = "requirement_parsing"
	TaskSystemOp      TaskType = "system_operation"
	TaskErrorDebug    TaskType = "error_debugging"
	TaskCodeGen       TaskType = "code_generation"
	TaskDependency    TaskType = "dependency_resolution"
	TaskConfiguration TaskType = "configuration"
	TaskToolExec      TaskType = "tool_execution"
)

// Query is a single unit of work in a batch. The payload is opaque to the
// engine; it is handed to the provider unchanged apart from model rewriting.
// Queries are immutable once submitted.
type Query struct {
	ID          string          `json:"id" yaml:"id"`
	TaskType    TaskType        `json:"task_type" yaml:"task_type"`
	Payload     json.RawMessage `json:"payload" yaml:"payload"`
	Temperature *float64        `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// MaxRetries overrides the configured retry ceiling when non-nil.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	// Timeout bounds each provider attempt for this query when non-zero.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

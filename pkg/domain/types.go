package domain

import (
	"encoding/json"
	"time"
)

// IDs

type NodeID string
type JobID string

// Statuses

type JobStatus string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusStarted  JobStatus = "STARTED"
	JobStatusFinished JobStatus = "FINISHED"
	JobStatusFailed   JobStatus = "FAILED"
	JobStatusCanceled JobStatus = "CANCELED"
)

// Node & capacity

// WorkerNode is one pinned-worker process in the fleet. Capacity and
// Load count device hosts, not bytes: a node with capacity 8 owns at
// most 8 persistent device connections.

type WorkerNode struct {
	ID           NodeID            `json:"id"`
	Hostname     string            `json:"hostname"`
	Capacity     int               `json:"capacity"`
	Load         int               `json:"load"`
	Alive        bool              `json:"alive"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	Queue        string            `json:"queue"`
	Heartbeat    time.Time         `json:"heartbeat"`
}

// Remaining is the node's free slot count.
func (n WorkerNode) Remaining() int {
	r := n.Capacity - n.Load
	if r < 0 {
		return 0
	}
	return r
}

// HasCapabilities reports whether the node advertises every required tag.
func (n WorkerNode) HasCapabilities(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range n.Capabilities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Task is one scheduling attempt's input. Host is the device the job
// targets; it doubles as the pinning key. Requirements are opaque
// capability tags, matched by set inclusion only.

type Task struct {
	ID           JobID    `json:"id"`
	Host         string   `json:"host"`
	Requirements []string `json:"requirements,omitempty"`
}

// IncrementOutcome is the store's verdict on a bounded load increment.

type IncrementOutcome int

const (
	IncrementOK IncrementOutcome = iota
	IncrementAtCapacity
	IncrementNotFound
)

// Decision is the scheduler's output, handed to the binder.

type Decision struct {
	TaskID            JobID  `json:"task_id"`
	NodeID            NodeID `json:"node_id"`
	NodeHostname      string `json:"node_hostname"`
	Queue             string `json:"queue"`
	PolicyName        string `json:"policy_name"`
	ObservedRemaining int    `json:"observed_remaining"`
}

// Jobs

// DriverSpec is passed through to the worker's device driver untouched.
type DriverSpec struct {
	Name       string          `json:"name"`
	Connection json.RawMessage `json:"connection,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// TemplateSpec is an optional render step applied to command output or
// pushed configuration. The scheduler never inspects it.
type TemplateSpec struct {
	Name    string          `json:"name"`
	Source  string          `json:"source,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}

type WebhookMethod string

const (
	WebhookGET    WebhookMethod = "GET"
	WebhookPOST   WebhookMethod = "POST"
	WebhookPUT    WebhookMethod = "PUT"
	WebhookDELETE WebhookMethod = "DELETE"
	WebhookPATCH  WebhookMethod = "PATCH"
)

type WebhookSpec struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Method  WebhookMethod     `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// JobRequest is what the API accepts: a device operation plus the
// scheduling inputs needed to place it.

type JobRequest struct {
	ID           JobID           `json:"id"`
	Host         string          `json:"host"`
	Requirements []string        `json:"requirements,omitempty"`
	Driver       DriverSpec      `json:"driver"`
	Command      []string        `json:"command,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`
	Template     *TemplateSpec   `json:"template,omitempty"`
	Webhook      *WebhookSpec    `json:"webhook,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Task derives the scheduler-facing view of the request.
func (r *JobRequest) Task() Task {
	return Task{ID: r.ID, Host: r.Host, Requirements: r.Requirements}
}

// JobResult mirrors what workers report back.

type JobResult struct {
	Retval json.RawMessage `json:"retval,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Job is the queued unit a worker consumes: the request plus its
// placement.

type Job struct {
	Request    JobRequest `json:"request"`
	NodeID     NodeID     `json:"node_id"`
	Queue      string     `json:"queue"`
	Status     JobStatus  `json:"status"`
	Result     *JobResult `json:"result,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

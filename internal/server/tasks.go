package server

import (
	"context"
	"sync"
	"time"

	"github.com/prodspider/prodspider/pkg/plugin"
)

// Task lifecycle states.
const (
	StatePending  = "PENDING"
	StateStarted  = "STARTED"
	StateProgress = "PROGRESS"
	StateRetry    = "RETRY"
	StateSuccess  = "SUCCESS"
	StateFailure  = "FAILURE"
	StateRevoked  = "REVOKED"
)

// revocable are the states a task can be cancelled from. Later states are
// final or too far along to roll back.
var revocable = map[string]bool{
	StatePending: true,
	StateStarted: true,
	StateRetry:   true,
}

// Task is the tracked state of one crawl request.
type Task struct {
	ID        string               `json:"task_id"`
	State     string               `json:"status"`
	Domains   []string             `json:"domains"`
	MaxDepth  int                  `json:"max_depth"`
	CreatedAt time.Time            `json:"created_at"`
	Progress  plugin.ProgressEvent `json:"progress,omitempty"`
	Result    *plugin.TaskReport   `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`

	cancel context.CancelFunc
}

// StatusMirror receives task state transitions for external visibility.
// The Redis store implements it; a nil mirror is ignored.
type StatusMirror interface {
	SetTaskStatus(ctx context.Context, taskID, status string) error
}

// TaskManager tracks in-flight and finished crawl tasks.
type TaskManager struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	mirror StatusMirror
}

// NewTaskManager creates a task registry. mirror may be nil.
func NewTaskManager(mirror StatusMirror) *TaskManager {
	return &TaskManager{
		tasks:  make(map[string]*Task),
		mirror: mirror,
	}
}

// Create registers a pending task and returns its cancellable context.
func (m *TaskManager) Create(taskID string, domains []string, maxDepth int) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.tasks[taskID] = &Task{
		ID:        taskID,
		State:     StatePending,
		Domains:   domains,
		MaxDepth:  maxDepth,
		CreatedAt: time.Now().UTC(),
		cancel:    cancel,
	}
	m.mu.Unlock()

	m.mirrorState(taskID, StatePending)
	return ctx
}

// Get returns a snapshot of the task, or nil if unknown.
func (m *TaskManager) Get(taskID string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[taskID]
	if t == nil {
		return nil
	}
	snapshot := *t
	snapshot.cancel = nil
	return &snapshot
}

// SetState moves the task to a new lifecycle state.
func (m *TaskManager) SetState(taskID, state string) {
	m.mu.Lock()
	if t := m.tasks[taskID]; t != nil {
		t.State = state
	}
	m.mu.Unlock()
	m.mirrorState(taskID, state)
}

// SetProgress records the latest progress event and marks the task running.
func (m *TaskManager) SetProgress(taskID string, ev plugin.ProgressEvent) {
	m.mu.Lock()
	if t := m.tasks[taskID]; t != nil {
		t.Progress = ev
		if t.State == StateStarted || t.State == StateProgress {
			t.State = StateProgress
		}
	}
	m.mu.Unlock()
	m.mirrorState(taskID, StateProgress)
}

// Finish records the terminal result. A revoked task stays revoked.
func (m *TaskManager) Finish(taskID string, report *plugin.TaskReport, err error) {
	state := StateSuccess
	m.mu.Lock()
	if t := m.tasks[taskID]; t != nil {
		t.Result = report
		if t.State == StateRevoked {
			state = StateRevoked
		} else if err != nil {
			state = StateFailure
			t.Error = err.Error()
		}
		t.State = state
	}
	m.mu.Unlock()
	m.mirrorState(taskID, state)
}

// Revoke cancels a task if its state allows it. Returns the resulting state
// and whether the revoke took effect; an unknown task returns ("", false).
func (m *TaskManager) Revoke(taskID string, terminate bool) (string, bool) {
	m.mu.Lock()
	t := m.tasks[taskID]
	if t == nil {
		m.mu.Unlock()
		return "", false
	}
	if !revocable[t.State] {
		state := t.State
		m.mu.Unlock()
		return state, false
	}
	t.State = StateRevoked
	cancel := t.cancel
	m.mu.Unlock()

	if terminate && cancel != nil {
		cancel()
	}
	m.mirrorState(taskID, StateRevoked)
	return StateRevoked, true
}

func (m *TaskManager) mirrorState(taskID, state string) {
	if m.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.mirror.SetTaskStatus(ctx, taskID, state)
}

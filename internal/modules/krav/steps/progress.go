package steps

import (
	"sync"
	"time"
)

type ProgressEventType string

const (
	ProgressStart    ProgressEventType = "start"
	ProgressInfo     ProgressEventType = "info"
	ProgressProgress ProgressEventType = "progress"
	ProgressRetry    ProgressEventType = "retry"
	ProgressWarning  ProgressEventType = "warning"
	ProgressError    ProgressEventType = "error"
	ProgressSuccess  ProgressEventType = "success"
)

// ProgressEvent is one entry on the ordered side channel a grouping run
// reports through. Informational only.
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	Message   string            `json:"message"`
	Step      int               `json:"step,omitempty"`
	Total     int               `json:"total,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type ProgressFunc func(ev ProgressEvent)

// progressEmitter serializes event emission so consumers observe a single
// ordered stream even when categories are processed in parallel.
type progressEmitter struct {
	mu sync.Mutex
	fn ProgressFunc
}

func newProgressEmitter(fn ProgressFunc) *progressEmitter {
	return &progressEmitter{fn: fn}
}

func (e *progressEmitter) emit(t ProgressEventType, msg string, step, total int) {
	if e == nil || e.fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fn(ProgressEvent{
		Type:      t,
		Message:   msg,
		Step:      step,
		Total:     total,
		Timestamp: time.Now().UTC(),
	})
}

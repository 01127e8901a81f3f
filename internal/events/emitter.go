package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var buffer = NewRingBuffer(256)

// Appender persists events durably. Both storage backends implement it.
type Appender interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
}

var (
	appender       Appender
	appenderMu     sync.RWMutex
	appenderFailed bool
	sessionID      = uuid.NewString()
)

// SetAppender sets the durable event sink. nil disables persistence.
func SetAppender(a Appender) {
	appenderMu.Lock()
	appender = a
	appenderFailed = false
	appenderMu.Unlock()
}

// SessionID identifies this process run on persisted events.
func SessionID() string {
	appenderMu.RLock()
	defer appenderMu.RUnlock()
	return sessionID
}

// NewSession starts a new session id, e.g. after a grid reload.
func NewSession() string {
	appenderMu.Lock()
	defer appenderMu.Unlock()
	sessionID = uuid.NewString()
	return sessionID
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	broadcast(e)

	appenderMu.RLock()
	a, failed, session := appender, appenderFailed, sessionID
	appenderMu.RUnlock()

	if a != nil {
		if err := a.Append(ts, level, name, msg, fields, session); err != nil && !failed {
			// Reported once, straight into the buffer: going through Emit
			// would recurse while the store stays down.
			appenderMu.Lock()
			report := !appenderFailed
			appenderFailed = true
			appenderMu.Unlock()
			if report {
				errEvent := Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				}
				buffer.Add(errEvent)
				broadcast(errEvent)
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}

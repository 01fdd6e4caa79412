package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeTurn         EventType = "turn"
	EventTypeAttempt      EventType = "attempt"
	EventTypeToolCall     EventType = "tool_call"
	EventTypePolicyCheck  EventType = "policy_check"
	EventTypeConfirmation EventType = "confirmation"
	EventTypeExtraction   EventType = "extraction"
	EventTypeReminder     EventType = "reminder"
	EventTypeHeartbeat    EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Step      string    `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger is a pure telemetry sink. Emitting an event can never fail a turn:
// marshalling or file errors are swallowed after a best-effort log line.
type Logger struct {
	attemptLogPath string
	maxSize        int64
}

func NewLogger() *Logger {
	return &Logger{
		attemptLogPath: filepath.Join("logs", "attempts.jsonl"),
		maxSize:        10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeAttempt {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.attemptLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.attemptLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.attemptLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.attemptLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.attemptLogPath, oldPath)
}

// Helper methods for common events

// LogTurn records which decision path handled a turn: "confirmation",
// "resolver", "extraction" or "engine".
func (l *Logger) LogTurn(sessionID, step, path, intent string) {
	l.Log(Event{
		Type:      EventTypeTurn,
		SessionID: sessionID,
		Step:      step,
		Data: map[string]string{
			"path":   path,
			"intent": intent,
		},
	})
}

// LogAttempt records one fallback-engine generation attempt.
func (l *Logger) LogAttempt(sessionID, step, tier string, silent bool, toolCalls int, stopReason string, outputTokens int) {
	l.Log(Event{
		Type:      EventTypeAttempt,
		SessionID: sessionID,
		Step:      step,
		Data: map[string]any{
			"tier":          tier,
			"silent":        silent,
			"tool_calls":    toolCalls,
			"stop_reason":   stopReason,
			"output_tokens": outputTokens,
		},
	})
}

func (l *Logger) LogToolCall(sessionID, step, tool, args string) {
	l.Log(Event{
		Type:      EventTypeToolCall,
		SessionID: sessionID,
		Step:      step,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogPolicyCheck(sessionID, step, tool, effect, reason string) {
	l.Log(Event{
		Type:      EventTypePolicyCheck,
		SessionID: sessionID,
		Step:      step,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogConfirmation(sessionID, step, requestID, outcome string) {
	l.Log(Event{
		Type:      EventTypeConfirmation,
		SessionID: sessionID,
		Step:      step,
		Data: map[string]string{
			"request_id": requestID,
			"outcome":    outcome,
		},
	})
}

func (l *Logger) LogExtraction(sessionID, source, outcome string) {
	l.Log(Event{
		Type:      EventTypeExtraction,
		SessionID: sessionID,
		Data: map[string]string{
			"source":  source,
			"outcome": outcome,
		},
	})
}

func (l *Logger) LogReminder(sessionID, task string) {
	l.Log(Event{
		Type:      EventTypeReminder,
		SessionID: sessionID,
		Data:      map[string]string{"task": task},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

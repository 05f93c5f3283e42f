package chefai

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TurnLogger is the interface for per-turn audit logging.
type TurnLogger interface {
	LogTurn(turn TurnLog) error
}

// NewTurnLogFilePath returns a log file path under dir named after the start time and a cleaned up model id.
func NewTurnLogFilePath(dir, model string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model))
	return filepath.Join(dir, fmt.Sprintf("%d.%s.json", time.Now().Unix(), name))
}

// TurnLog represents one user turn: the upstream requests, the replies and the tools run in between.
type TurnLog struct {
	Turn      int           `json:"turn"`
	Timestamp time.Time     `json:"timestamp"`
	State     string        `json:"state"`
	Requests  []string      `json:"requests,omitempty"`
	Replies   []any         `json:"replies,omitempty"`
	ToolCalls []ToolCallLog `json:"tool_calls,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// ToolCallLog represents a single tool execution within a turn.
type ToolCallLog struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Input  string `json:"input"`
	Output any    `json:"output"`
	Error  string `json:"error,omitempty"`
}

// FileTurnLogger accumulates turns and writes them out on Flush. Turns are
// encoded as they are logged; a turn that cannot be encoded is rejected and
// never reaches the buffer.
type FileTurnLogger struct {
	turns  []json.RawMessage
	writer io.Writer
}

func NewFileTurnLogger(writer io.Writer) *FileTurnLogger {
	return &FileTurnLogger{
		turns:  make([]json.RawMessage, 0),
		writer: writer,
	}
}

func (l *FileTurnLogger) LogTurn(turn TurnLog) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn %d: %w", turn.Turn, err)
	}
	l.turns = append(l.turns, data)
	return nil
}

// Flush writes all buffered turns as a single JSON document and clears the buffer.
func (l *FileTurnLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"conversation": map[string]any{
			"timestamp": time.Now(),
			"turns":     l.turns,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal turn log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write turn log: %w", err)
	}

	l.turns = l.turns[:0]
	return nil
}

// NoOpTurnLogger discards all turns.
type NoOpTurnLogger struct{}

func NewNoOpTurnLogger() *NoOpTurnLogger {
	return &NoOpTurnLogger{}
}

func (nop *NoOpTurnLogger) LogTurn(turn TurnLog) error {
	return nil
}

// StdoutTurnLogger logs each turn as a JSON line (for Lambda/CloudWatch).
type StdoutTurnLogger struct {
	out io.Writer
}

func NewStdoutTurnLogger() *StdoutTurnLogger {
	return &StdoutTurnLogger{out: os.Stdout}
}

func (l *StdoutTurnLogger) LogTurn(turn TurnLog) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}

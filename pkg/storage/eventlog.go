package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventLog is an append-only audit trail of submission events, one JSON
// object per line.
type EventLog interface {
	Append(event string, data map[string]any) error
}

type NopEventLog struct{}

func (NopEventLog) Append(string, map[string]any) error { return nil }

type FileEventLog struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

func NewFileEventLog(path string) (*FileEventLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &FileEventLog{f: f, now: time.Now}, nil
}

func (w *FileEventLog) Append(event string, data map[string]any) error {
	line, err := json.Marshal(map[string]any{
		"timestamp": w.now().UTC().Format(time.RFC3339),
		"event":     event,
		"data":      data,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (w *FileEventLog) Close() error { return w.f.Close() }

var (
	_ EventLog = NopEventLog{}
	_ EventLog = (*FileEventLog)(nil)
)

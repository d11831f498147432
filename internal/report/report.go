// Package report persists execution reports. The log is append-only:
// reports are never edited or deleted, and the latest report for a
// proposal is the most recent entry by append order.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Outcome of one execution attempt.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Report is one immutable execution outcome record.
type Report struct {
	DDSID     string `json:"dds_id"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Notes     string `json:"notes,omitempty"`
}

// Success reports whether the attempt succeeded.
func (r Report) Success() bool { return r.Status == StatusSuccess }

// Log is the single-file execution report log. Appends rewrite the
// whole document atomically; the process is assumed to be the only
// writer.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog returns a report log backed by the JSON document at path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

type document struct {
	Executions []Report `json:"executions"`
}

// Append persists r at the end of the log. An empty timestamp is
// stamped with the current UTC time.
func (l *Log) Append(r Report) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.DDSID == "" {
		return fmt.Errorf("report: dds_id is required")
	}
	if r.Status != StatusSuccess && r.Status != StatusFailed {
		return fmt.Errorf("report %s: unknown status %q", r.DDSID, r.Status)
	}
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	doc, err := l.load()
	if err != nil {
		return err
	}
	doc.Executions = append(doc.Executions, r)
	return l.save(doc)
}

// All returns every report in append order.
func (l *Log) All() ([]Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	return doc.Executions, nil
}

// LatestFor returns the most recent report for the proposal id, or
// false when none exists.
func (l *Log) LatestFor(ddsID string) (Report, bool, error) {
	all, err := l.All()
	if err != nil {
		return Report{}, false, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].DDSID == ddsID {
			return all[i], true, nil
		}
	}
	return Report{}, false, nil
}

// HasSuccess reports whether any successful report exists for the
// proposal id. This is the idempotency predicate: a success report
// permanently blocks re-execution.
func (l *Log) HasSuccess(ddsID string) (bool, error) {
	all, err := l.All()
	if err != nil {
		return false, err
	}
	for _, r := range all {
		if r.DDSID == ddsID && r.Success() {
			return true, nil
		}
	}
	return false, nil
}

func (l *Log) load() (*document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("read report log: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse report log %s: %w", l.path, err)
	}
	return &doc, nil
}

func (l *Log) save(doc *document) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create report log dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report log: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".reports-*.tmp")
	if err != nil {
		return fmt.Errorf("write report log: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write report log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write report log: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write report log: %w", err)
	}
	return nil
}

// Package registry tracks in-progress break sessions. The registry is the
// durable record of in-flight sessions: it is loaded whole at startup and
// the full snapshot is rewritten on every mutation, so a crash loses at
// most one pending mutation and never leaves partial state behind.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// TimeLayout is the on-disk timestamp format, local time without zone.
const TimeLayout = "2006-01-02 15:04:05"

// ErrActiveExists is returned by Begin when a session already exists for
// the key.
var ErrActiveExists = errors.New("registry: session already active")

// ErrNoActiveSession is returned by End when no session exists for the key.
var ErrNoActiveSession = errors.New("registry: no active session")

// ActiveSession is one in-flight break session.
type ActiveSession struct {
	EmployeeID string    `json:"employee_id"`
	BreakType  string    `json:"break_type"`
	StartedAt  time.Time `json:"started_at"`
}

// Registry is a mutex-guarded session map backed by a JSON snapshot file.
// At most one session exists per (employee, break type) key.
type Registry struct {
	path     string
	mu       sync.Mutex
	sessions map[string]time.Time
}

// Load opens the registry at path, reading any existing snapshot. A missing
// file is an empty registry; an unreadable one is a storage fault.
func Load(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}

	r := &Registry{
		path:     path,
		sessions: make(map[string]time.Time),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry snapshot: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry snapshot: %w", err)
	}
	for key, value := range raw {
		started, err := time.ParseInLocation(TimeLayout, value, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse registry timestamp for %q: %w", key, err)
		}
		r.sessions[key] = started
	}
	return r, nil
}

// Begin inserts a session for the key and persists the snapshot.
func (r *Registry) Begin(employeeID, breakType string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(employeeID, breakType)
	if _, exists := r.sessions[key]; exists {
		return ErrActiveExists
	}
	r.sessions[key] = startedAt
	if err := r.persist(); err != nil {
		delete(r.sessions, key)
		return err
	}
	return nil
}

// End removes the session for the key, persists the snapshot, and returns
// the original start timestamp.
func (r *Registry) End(employeeID, breakType string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(employeeID, breakType)
	started, exists := r.sessions[key]
	if !exists {
		return time.Time{}, ErrNoActiveSession
	}
	delete(r.sessions, key)
	if err := r.persist(); err != nil {
		r.sessions[key] = started
		return time.Time{}, err
	}
	return started, nil
}

// Lookup returns the start timestamp for the key, if any. No side effects.
func (r *Registry) Lookup(employeeID, breakType string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started, exists := r.sessions[sessionKey(employeeID, breakType)]
	return started, exists
}

// List returns all in-flight sessions ordered by start time.
func (r *Registry) List() []ActiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]ActiveSession, 0, len(r.sessions))
	for key, started := range r.sessions {
		employeeID, breakType := splitKey(key)
		sessions = append(sessions, ActiveSession{
			EmployeeID: employeeID,
			BreakType:  breakType,
			StartedAt:  started,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions
}

// persist rewrites the whole snapshot. Must be called with r.mu held.
// The temp-file write plus rename keeps the swap atomic: readers see either
// the old snapshot or the new one, never a torn file.
func (r *Registry) persist() error {
	raw := make(map[string]string, len(r.sessions))
	for key, started := range r.sessions {
		raw[key] = started.Format(TimeLayout)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry snapshot: %w", err)
	}

	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write registry snapshot: %w", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		return fmt.Errorf("swap registry snapshot: %w", err)
	}
	return nil
}

func sessionKey(employeeID, breakType string) string {
	return employeeID + "_" + breakType
}

func splitKey(key string) (employeeID, breakType string) {
	// Break type labels contain no underscore, so split on the last one.
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '_' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

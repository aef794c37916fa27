// Package environ abstracts the process environment so loaders and validators
// can run against either the real environment or an isolated in-memory one.
package environ

import (
	"maps"
	"os"
	"strings"
	"sync"
)

// Environment reads and writes environment variables.
type Environment interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Snapshot() map[string]string
}

type osEnvironment struct{}

// OS returns the real process environment.
func OS() Environment {
	return osEnvironment{}
}

func (osEnvironment) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

func (osEnvironment) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

func (osEnvironment) Snapshot() map[string]string {
	entries := os.Environ()
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// Map is an in-memory Environment guarded by a RWMutex. The zero value is an
// empty environment ready to use.
type Map struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMap creates a Map seeded with a copy of initial.
func NewMap(initial map[string]string) *Map {
	vars := make(map[string]string, len(initial))
	maps.Copy(vars, initial)
	return &Map{vars: vars}
}

// LookupEnv returns the value stored under key.
func (m *Map) LookupEnv(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.vars[key]
	return value, ok
}

// Setenv stores value under key.
func (m *Map) Setenv(key, value string) error {
	m.mu.Lock()
	if m.vars == nil {
		m.vars = make(map[string]string)
	}
	m.vars[key] = value
	m.mu.Unlock()
	return nil
}

// Snapshot returns a defensive copy of all variables.
func (m *Map) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.vars))
	maps.Copy(out, m.vars)
	return out
}

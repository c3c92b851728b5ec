package relq

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	once                sync.Once
	instance            *Manager
	ErrExecutorNotFound = errors.New("database executor not found")
)

// Manager holds named executors so entities can route their queries to
// different database connections by name.
type Manager struct {
	mutex     sync.RWMutex
	executors map[string]Executor
}

// DM returns the singleton instance of Manager
func DM() *Manager {
	once.Do(func() {
		instance = &Manager{
			executors: make(map[string]Executor),
		}
	})
	return instance
}

// SetDefault sets the given executor as default
func (m *Manager) SetDefault(exec Executor) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.executors["default"] = exec
}

// Add adds a new named executor to the manager
func (m *Manager) Add(name string, exec Executor) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.executors[name] = exec
}

// Get retrieves an executor from the manager. If no name is provided it
// defaults to "default".
func (m *Manager) Get(name ...string) (Executor, bool) {
	execName := "default"
	if len(name) > 0 {
		execName = name[0]
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	exec, found := m.executors[execName]
	return exec, found
}

// Remove removes a named executor, closing it first when it holds
// resources
func (m *Manager) Remove(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	exec, found := m.executors[name]
	if !found {
		return fmt.Errorf("%w: %s", ErrExecutorNotFound, name)
	}

	if closer, ok := exec.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}

	delete(m.executors, name)
	return nil
}

// All returns all the executors
func (m *Manager) All() map[string]Executor {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make(map[string]Executor, len(m.executors))
	for k, v := range m.executors {
		out[k] = v
	}
	return out
}

// RemoveAll closes and removes all registered executors
func (m *Manager) RemoveAll() error {
	for name := range m.All() {
		if err := m.Remove(name); err != nil {
			return err
		}
	}
	return nil
}

// SessionFor opens a session on the executor the entity is declared to
// use, falling back to the default executor.
func (m *Manager) SessionFor(e *Entity, opts ...SessionOption) (*Session, error) {
	name := "default"
	if e != nil && e.DB != "" {
		name = e.DB
	}
	exec, found := m.Get(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotFound, name)
	}
	return NewSession(exec, opts...), nil
}

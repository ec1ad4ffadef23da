package worker

import (
	"sync"
)

// Manager is a registry of named workers, backing the operational
// status/health endpoints
type Manager struct {
	mu      sync.RWMutex
	workers map[string]*Worker
}

// NewManager creates a new worker manager
func NewManager() *Manager {
	return &Manager{
		workers: make(map[string]*Worker),
	}
}

// Register adds a worker under its name, replacing any previous one
func (m *Manager) Register(w *Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.Name()] = w
}

// Get returns the worker with the given name
func (m *Manager) Get(name string) (*Worker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[name]
	return w, ok
}

// Status returns the runtime snapshot for one worker
func (m *Manager) Status(name string) (Status, bool) {
	w, ok := m.Get(name)
	if !ok {
		return Status{}, false
	}
	return w.Status(), true
}

// Statuses returns snapshots for every registered worker
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]Status, 0, len(m.workers))
	for _, w := range m.workers {
		statuses = append(statuses, w.Status())
	}
	return statuses
}

// CheckHealth reports per-worker health flags
func (m *Manager) CheckHealth() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := make(map[string]bool, len(m.workers))
	for name, w := range m.workers {
		health[name] = w.IsHealthy()
	}
	return health
}

// StartAll starts every registered worker
func (m *Manager) StartAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.workers {
		w.Start()
	}
}

// StopAll stops every registered worker
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.workers {
		w.Stop()
	}
}

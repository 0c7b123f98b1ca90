// Package loader provides the template sources an Engine reads from.
package loader

import (
	"maps"
	"sync"
)

// String treats the requested name as the template source.
type String struct{}

func (String) Load(name string) (string, error) { return name, nil }

// Memory serves templates registered in process.
type Memory struct {
	mu        sync.RWMutex
	templates map[string]string
}

func NewMemory(templates map[string]string) *Memory {
	m := &Memory{templates: map[string]string{}}
	maps.Copy(m.templates, templates)
	return m
}

func (m *Memory) Load(name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.templates[name]; ok {
		return s, nil
	}
	return "", &NotFoundError{Name: name}
}

// Set adds or replaces a template.
func (m *Memory) Set(name, source string) {
	m.mu.Lock()
	m.templates[name] = source
	m.mu.Unlock()
}

func (m *Memory) Delete(name string) {
	m.mu.Lock()
	delete(m.templates, name)
	m.mu.Unlock()
}

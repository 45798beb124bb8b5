package publisher

import (
	"fmt"

	"go.uber.org/zap"
)

// Manager is the registry of platform publishers. Registration happens once
// at startup from config; only enabled platforms are registered.
type Manager struct {
	publishers map[string]Publisher
	order      []string
	logger     *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		publishers: make(map[string]Publisher),
		logger:     logger,
	}
}

func (m *Manager) Register(p Publisher) error {
	name := p.Name()
	if _, exists := m.publishers[name]; exists {
		return fmt.Errorf("publisher for platform %s already registered", name)
	}

	m.publishers[name] = p
	m.order = append(m.order, name)
	m.logger.Info("Publisher registered", zap.String("platform", name))
	return nil
}

func (m *Manager) Get(name string) (Publisher, error) {
	p, exists := m.publishers[name]
	if !exists {
		return nil, fmt.Errorf("publisher for platform %s not found", name)
	}
	return p, nil
}

// Enabled returns the registered publishers in registration order.
func (m *Manager) Enabled() []Publisher {
	out := make([]Publisher, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.publishers[name])
	}
	return out
}

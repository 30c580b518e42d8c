package session

import "time"

// SetNowFunc overrides the manager's clock for lifecycle tests.
func (m *Manager) SetNowFunc(now func() time.Time) {
	m.now = now
}

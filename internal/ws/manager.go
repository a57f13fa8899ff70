package ws

import (
	"context"
	"sync"
	"time"
)

// Manager tracks station connections. A station has at most one live link;
// registering replaces any prior entry (last connect wins).
type Manager struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	pingInterval time.Duration
}

// NewManager builds connection manager.
func NewManager(pingInterval time.Duration) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Manager{
		connections:  make(map[string]*Connection),
		pingInterval: pingInterval,
	}
}

// Add registers new connection, replacing any prior one for the station.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.StationID()] = conn
}

// Get returns the live connection for a station.
func (m *Manager) Get(stationID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[stationID]
	return conn, ok
}

// Remove unregisters the connection only if the entry still holds it. A close
// racing a newer connection for the same station must not evict the newcomer.
func (m *Manager) Remove(stationID string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.connections[stationID]; ok && current == conn {
		delete(m.connections, stationID)
	}
}

// Start begins ping loop to keep connections active.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			for _, conn := range m.connections {
				conn.Ping()
			}
			m.mu.RUnlock()
		}
	}
}

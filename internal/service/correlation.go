package service

import "sync"

// PendingCommand links an outstanding remote command to the transaction it
// concerns. Entries live until the matching acknowledgement arrives; a process
// restart loses them.
type PendingCommand struct {
	TransactionID int64
	StationID     string
	Action        string
}

// PendingCommands maps outbound unique ids to pending commands.
type PendingCommands struct {
	mu   sync.RWMutex
	data map[string]PendingCommand
}

// NewPendingCommands returns initialized store.
func NewPendingCommands() *PendingCommands {
	return &PendingCommands{
		data: make(map[string]PendingCommand),
	}
}

// Put records a command awaiting acknowledgement.
func (s *PendingCommands) Put(uniqueID string, cmd PendingCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[uniqueID] = cmd
}

// Take removes and returns the command for the given id. Each entry is
// consumed at most once.
func (s *PendingCommands) Take(uniqueID string) (PendingCommand, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.data[uniqueID]
	if ok {
		delete(s.data, uniqueID)
	}
	return cmd, ok
}

// Len returns the number of outstanding commands.
func (s *PendingCommands) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

package simulator

import (
	"fmt"
	"sync"
	"time"
)

// WriteCmd is an operator request to write a variable. Raw is coerced to the
// variable's declared type before it reaches the substrate.
type WriteCmd struct {
	Key string
	Raw string
}

// ValueInfo is one variable's display state.
type ValueInfo struct {
	NodeID    string
	Type      string
	SimMode   string
	Text      string
	UpdatedAt time.Time
}

// State holds the application's live data. The engine is the only writer of
// variable values; the TUI and the access server read snapshots.
type State struct {
	mu       sync.Mutex
	values   map[string]ValueInfo
	order    []string
	status   string
	Commands chan WriteCmd
}

func NewState(reg *Registry) *State {
	s := &State{
		values:   make(map[string]ValueInfo),
		status:   "Initializing...",
		Commands: make(chan WriteCmd, 10),
	}
	for _, e := range reg.Variables {
		s.order = append(s.order, e.Name)
		s.values[e.Name] = ValueInfo{
			NodeID:  e.NodeID,
			Type:    e.Type.String(),
			SimMode: e.SimMode,
			Text:    fmt.Sprintf("%v", e.Initial),
		}
	}
	return s
}

func (s *State) SendCommand(cmd WriteCmd) { s.Commands <- cmd }

func (s *State) SetValue(name string, value interface{}, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.values[name]
	if !ok {
		return
	}
	info.Text = fmt.Sprintf("%v", value)
	info.UpdatedAt = at
	s.values[name] = info
}

func (s *State) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Snapshot returns copies of the value table, the registration order, and the
// status line.
func (s *State) Snapshot() (map[string]ValueInfo, []string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]ValueInfo, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	order := make([]string, len(s.order))
	copy(order, s.order)
	return values, order, s.status
}

package substrate

import (
	"context"
	"fmt"
	"sync"
)

// MemorySpace is an in-process Space. All node state lives behind one mutex,
// so simulator and operator connections can touch it concurrently.
type MemorySpace struct {
	mu          sync.Mutex
	endpoint    string
	namespaces  []string
	nodes       map[string]*memNode
	root        *memNode
	failReads   map[string]error
	failWrites  map[string]error
	initialized bool
}

type memNode struct {
	space      *MemorySpace
	id         string
	name       string
	value      interface{}
	isVariable bool
	writable   bool
}

func NewMemorySpace() *MemorySpace {
	s := &MemorySpace{
		// ns=0 and ns=1 are reserved the way OPC UA stacks reserve them,
		// so the first registered namespace gets index 2.
		namespaces: []string{"http://opcfoundation.org/UA/", "urn:opcua-tools:server"},
		nodes:      make(map[string]*memNode),
		failReads:  make(map[string]error),
		failWrites: make(map[string]error),
	}
	s.root = &memNode{space: s, id: "i=85", name: "Objects"}
	s.nodes[s.root.id] = s.root
	return s
}

func (s *MemorySpace) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *MemorySpace) SetEndpoint(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = endpoint
}

func (s *MemorySpace) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func (s *MemorySpace) RegisterNamespace(ctx context.Context, uri string) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ns := range s.namespaces {
		if ns == uri {
			return uint16(i), nil
		}
	}
	s.namespaces = append(s.namespaces, uri)
	return uint16(len(s.namespaces) - 1), nil
}

func (s *MemorySpace) Objects() Node { return s.root }

// Node looks up a node handle by identifier.
func (s *MemorySpace) Node(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok
}

// ObjectCount returns the number of container nodes, excluding the root.
func (s *MemorySpace) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.nodes {
		if !n.isVariable && n != s.root {
			count++
		}
	}
	return count
}

// VariableCount returns the number of variable nodes.
func (s *MemorySpace) VariableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.nodes {
		if n.isVariable {
			count++
		}
	}
	return count
}

// FailReads makes ReadValue on the given node return err until cleared with a
// nil err. Test hook.
func (s *MemorySpace) FailReads(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failReads, id)
		return
	}
	s.failReads[id] = err
}

// FailWrites makes WriteValue on the given node return err until cleared with
// a nil err. Test hook.
func (s *MemorySpace) FailWrites(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failWrites, id)
		return
	}
	s.failWrites[id] = err
}

func (s *MemorySpace) addChild(id, name string, value interface{}, isVariable bool) (*memNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[id]; exists {
		return nil, fmt.Errorf("node %s already exists", id)
	}
	n := &memNode{space: s, id: id, name: name, value: value, isVariable: isVariable}
	s.nodes[id] = n
	return n, nil
}

func (n *memNode) ID() string         { return n.id }
func (n *memNode) BrowseName() string { return n.name }

func (n *memNode) AddObject(ctx context.Context, nodeID, name string) (Node, error) {
	if n.isVariable {
		return nil, fmt.Errorf("node %s is a variable, cannot hold children", n.id)
	}
	return n.space.addChild(nodeID, name, nil, false)
}

func (n *memNode) AddVariable(ctx context.Context, nodeID, name string, initial interface{}) (Node, error) {
	if n.isVariable {
		return nil, fmt.Errorf("node %s is a variable, cannot hold children", n.id)
	}
	return n.space.addChild(nodeID, name, initial, true)
}

func (n *memNode) SetWritable(ctx context.Context, writable bool) error {
	n.space.mu.Lock()
	defer n.space.mu.Unlock()
	if !n.isVariable {
		return fmt.Errorf("node %s is not a variable", n.id)
	}
	n.writable = writable
	return nil
}

func (n *memNode) ReadValue(ctx context.Context) (interface{}, error) {
	n.space.mu.Lock()
	defer n.space.mu.Unlock()
	if err, ok := n.space.failReads[n.id]; ok {
		return nil, err
	}
	if !n.isVariable {
		return nil, fmt.Errorf("node %s is not a variable", n.id)
	}
	return n.value, nil
}

func (n *memNode) WriteValue(ctx context.Context, value interface{}) error {
	n.space.mu.Lock()
	defer n.space.mu.Unlock()
	if err, ok := n.space.failWrites[n.id]; ok {
		return err
	}
	if !n.isVariable {
		return fmt.Errorf("node %s is not a variable", n.id)
	}
	n.value = value
	return nil
}

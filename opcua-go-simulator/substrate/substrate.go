// Package substrate defines the address-space capability the simulator builds
// against: namespace registration, hierarchical object/variable node creation,
// and fallible value reads and writes. A real OPC UA stack would implement
// Space; the in-memory implementation here backs the operator endpoint and the
// tests.
package substrate

import "context"

// Node is a handle to one node in the address space.
type Node interface {
	// ID returns the node identifier, e.g. "ns=2;s=Machine.RPM".
	ID() string
	// BrowseName returns the display name the node was created with.
	BrowseName() string
	// AddObject creates a child container node.
	AddObject(ctx context.Context, nodeID, name string) (Node, error)
	// AddVariable creates a child variable node holding initial.
	AddVariable(ctx context.Context, nodeID, name string, initial interface{}) (Node, error)
	// SetWritable allows external clients to write the variable.
	SetWritable(ctx context.Context, writable bool) error
	// ReadValue returns the variable's current value.
	ReadValue(ctx context.Context) (interface{}, error)
	// WriteValue replaces the variable's current value.
	WriteValue(ctx context.Context, value interface{}) error
}

// Space is the address-space server seam.
type Space interface {
	Init(ctx context.Context) error
	SetEndpoint(endpoint string)
	// RegisterNamespace registers a namespace URI and returns its index.
	RegisterNamespace(ctx context.Context, uri string) (uint16, error)
	// Objects returns the pre-existing root container all paths hang off.
	Objects() Node
}

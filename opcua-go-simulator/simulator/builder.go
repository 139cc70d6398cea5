package simulator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"opcua-tools/opcua-go-simulator/config"
	"opcua-tools/opcua-go-simulator/substrate"
)

// VariableEntry is one created variable node plus its descriptor-derived
// metadata. Static variables (no simulation block) appear here but get no
// Binding.
type VariableEntry struct {
	Name     string
	Path     string
	NodeID   string
	Type     ValueType
	Writable bool
	SimMode  string
	Initial  interface{}
	Node     substrate.Node
}

// Binding is the live simulation unit for one variable. NextDue only moves
// forward, and only the engine touches it after setup.
type Binding struct {
	Entry    *VariableEntry
	Gen      Generator
	Interval time.Duration
	NextDue  time.Time
}

// Registry holds every created variable in registration order plus the subset
// that carries a simulation binding.
type Registry struct {
	Variables []*VariableEntry
	Bindings  []*Binding
	byName    map[string]*VariableEntry
	byID      map[string]*VariableEntry
}

// Lookup resolves a variable by name first, then by node identifier.
func (r *Registry) Lookup(key string) (*VariableEntry, bool) {
	if e, ok := r.byName[key]; ok {
		return e, true
	}
	e, ok := r.byID[key]
	return e, ok
}

// Builder materializes the configured model against the substrate. Container
// nodes are created lazily and cached by normalized path, so every path is
// materialized at most once and parents always exist before children.
type Builder struct {
	space substrate.Space
	nsIdx uint16
	log   *log.Logger
	cache map[string]substrate.Node
}

func NewBuilder(space substrate.Space, nsIdx uint16, logger *log.Logger) *Builder {
	return &Builder{
		space: space,
		nsIdx: nsIdx,
		log:   logger,
		cache: map[string]substrate.Node{"": space.Objects()},
	}
}

func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	keep := parts[:0]
	for _, p := range parts {
		if p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, "/")
}

func splitPath(path string) (parent, leaf string) {
	clean := normalizePath(path)
	if i := strings.LastIndex(clean, "/"); i >= 0 {
		return clean[:i], clean[i+1:]
	}
	return "", clean
}

// NodeID derives the canonical identifier for a normalized path.
func NodeID(nsIdx uint16, path string) string {
	return fmt.Sprintf("ns=%d;s=%s", nsIdx, strings.ReplaceAll(normalizePath(path), "/", "."))
}

// EnsurePath returns the container node for path, creating the chain of
// parents as needed. The empty path resolves to the root container.
func (b *Builder) EnsurePath(ctx context.Context, path string) (substrate.Node, error) {
	norm := normalizePath(path)
	if n, ok := b.cache[norm]; ok {
		return n, nil
	}
	parentPath, leaf := splitPath(norm)
	parent, err := b.EnsurePath(ctx, parentPath)
	if err != nil {
		return nil, err
	}
	obj, err := parent.AddObject(ctx, NodeID(b.nsIdx, norm), leaf)
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", norm, err)
	}
	b.cache[norm] = obj
	return obj, nil
}

// Build creates the root container and every configured variable, returning
// the registry. Structurally invalid configuration (variables not a list) is
// fatal; individual malformed entries were already dropped by the decoder.
// Variables whose simulation block cannot be resolved stay static.
func (b *Builder) Build(ctx context.Context, cfg *config.Config, now time.Time) (*Registry, error) {
	root := cfg.Model.RootName()
	if _, err := b.EnsurePath(ctx, root); err != nil {
		return nil, err
	}

	vars, skipped, err := cfg.Model.DecodeVariables()
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		b.log.Printf("config: skipped %d malformed variable entries", skipped)
	}

	reg := &Registry{
		byName: make(map[string]*VariableEntry),
		byID:   make(map[string]*VariableEntry),
	}

	for _, v := range vars {
		name := v.Name
		if name == "" {
			name = "Variable"
		}
		path := v.Path
		if path == "" {
			path = root + "/" + name
		}
		vtype := ParseType(v.Type)

		parentPath, leaf := splitPath(path)
		parent, err := b.EnsurePath(ctx, parentPath)
		if err != nil {
			return nil, err
		}

		nodeID := v.NodeID
		if nodeID != "" {
			if !strings.HasPrefix(nodeID, "ns=") {
				nodeID = fmt.Sprintf("ns=%d;s=%s", b.nsIdx, nodeID)
			}
		} else {
			nodeID = NodeID(b.nsIdx, path)
		}

		rawInitial := v.Initial
		if rawInitial == nil {
			if vtype == TypeBool {
				rawInitial = false
			} else {
				rawInitial = 0
			}
		}
		initial := Coerce(vtype, rawInitial)

		node, err := parent.AddVariable(ctx, nodeID, leaf, initial)
		if err != nil {
			return nil, fmt.Errorf("create variable %s: %w", name, err)
		}
		if v.IsWritable() {
			if err := node.SetWritable(ctx, true); err != nil {
				return nil, fmt.Errorf("set %s writable: %w", name, err)
			}
		}
		b.log.Printf("var: %-20s -> %s (type=%s, writable=%t)", name, nodeID, vtype, v.IsWritable())

		entry := &VariableEntry{
			Name:     name,
			Path:     normalizePath(path),
			NodeID:   nodeID,
			Type:     vtype,
			Writable: v.IsWritable(),
			Initial:  initial,
			Node:     node,
		}
		reg.Variables = append(reg.Variables, entry)
		reg.byName[entry.Name] = entry
		reg.byID[entry.NodeID] = entry

		if v.Simulation == nil || strings.TrimSpace(v.Simulation.Mode) == "" {
			continue
		}
		intervalMS := v.Simulation.IntervalMS
		if intervalMS <= 0 {
			intervalMS = cfg.Server.TickMS
		}
		gen, err := NewGenerator(v.Simulation, intervalMS)
		if err != nil {
			b.log.Printf("var: %s simulation disabled: %v", name, err)
			continue
		}
		entry.SimMode = gen.Mode()
		interval := time.Duration(intervalMS) * time.Millisecond
		reg.Bindings = append(reg.Bindings, &Binding{
			Entry:    entry,
			Gen:      gen,
			Interval: interval,
			NextDue:  now.Add(interval),
		})
	}
	return reg, nil
}

// Package replication implements the tick-tagged entity state replication
// core: the component registry, per-observer delta senders, and the
// receive-side ordering guard. It carries no transport or world-simulation
// logic of its own; the engines above it decide what to do with fresh
// values.
package replication

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/yohamta/donburi"
)

// Direction declares which way a component's values flow.
type Direction int

const (
	ServerToClient Direction = iota
	ClientToServer
	Bidirectional
)

// SyncMode governs how observers apply replicated values.
type SyncMode int

const (
	// ModeNone: values are written directly, no smoothing, no prediction.
	ModeNone SyncMode = iota
	// ModeInterpolated: values are blended between the two most recent
	// authoritative samples.
	ModeInterpolated
	// ModePredicted: the controlling client simulates ahead and reconciles;
	// observers that do not control the entity fall back to interpolation.
	ModePredicted
)

// ConfigurationError reports invalid component registration. It is fatal
// at startup and never recovered.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "replication: " + e.Reason
}

// LerpFunc blends two component values of the same registered type.
type LerpFunc func(a, b any, t float64) any

var msgpackHandle = &codec.MsgpackHandle{}

// Entry describes one registered component type and how to move its
// values across the wire.
type Entry struct {
	Id        uint
	Direction Direction
	Mode      SyncMode

	// Interp blends two authoritative samples; required for
	// ModeInterpolated and ModePredicted.
	Interp LerpFunc
	// Correction blends a stale predicted value toward a corrected one;
	// required for ModePredicted.
	Correction LerpFunc

	Component donburi.IComponentType

	encode func(v any) ([]byte, error)
	decode func(b []byte) (any, error)
	read   func(entry *donburi.Entry) (any, bool)
	write  func(entry *donburi.Entry, v any)
}

// Encode serializes a component value of this entry's type.
func (e *Entry) Encode(v any) ([]byte, error) {
	return e.encode(v)
}

// Decode deserializes a component value of this entry's type.
func (e *Entry) Decode(b []byte) (any, error) {
	return e.decode(b)
}

// Read copies the component value off a world entry, if present.
func (e *Entry) Read(entry *donburi.Entry) (any, bool) {
	return e.read(entry)
}

// Write stores a component value onto a world entry, adding the component
// first when missing.
func (e *Entry) Write(entry *donburi.Entry, v any) {
	e.write(entry, v)
}

// Registry is the closed set of replicated component types. Registration
// happens once at startup; Freeze makes the registry read-only before the
// simulation starts.
type Registry struct {
	byId   map[uint]*Entry
	byType map[donburi.IComponentType]*Entry
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{
		byId:   make(map[uint]*Entry),
		byType: make(map[donburi.IComponentType]*Entry),
	}
}

// Option customizes a registration.
type Option func(*Entry)

func WithDirection(d Direction) Option {
	return func(e *Entry) { e.Direction = d }
}

func WithMode(m SyncMode) Option {
	return func(e *Entry) { e.Mode = m }
}

// WithInterp installs a typed interpolation function.
func WithInterp[T any](fn func(a, b T, t float64) T) Option {
	return func(e *Entry) {
		e.Interp = func(a, b any, t float64) any { return fn(a.(T), b.(T), t) }
	}
}

// WithCorrection installs a typed correction function.
func WithCorrection[T any](fn func(a, b T, t float64) T) Option {
	return func(e *Entry) {
		e.Correction = func(a, b any, t float64) any { return fn(a.(T), b.(T), t) }
	}
}

// Register adds component type T under the given sync id. It fails with
// ConfigurationError on duplicate ids or types, on a mode missing its
// required functions, and after Freeze.
func Register[T any](r *Registry, id uint, comp *donburi.ComponentType[T], opts ...Option) error {
	if r.frozen {
		return &ConfigurationError{Reason: "registry is frozen, register components before the simulation starts"}
	}
	if id == 0 {
		return &ConfigurationError{Reason: "component id 0 is reserved"}
	}
	if _, dup := r.byId[id]; dup {
		return &ConfigurationError{Reason: fmt.Sprintf("component id %d registered twice", id)}
	}
	if _, dup := r.byType[comp]; dup {
		return &ConfigurationError{Reason: fmt.Sprintf("component type for id %d registered twice", id)}
	}

	e := &Entry{
		Id:        id,
		Direction: ServerToClient,
		Mode:      ModeNone,
		Component: comp,
		encode: func(v any) ([]byte, error) {
			val, ok := v.(T)
			if !ok {
				return nil, fmt.Errorf("encode component %d: wrong value type %T", id, v)
			}
			var out []byte
			if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(val); err != nil {
				return nil, fmt.Errorf("encode component %d: %w", id, err)
			}
			return out, nil
		},
		decode: func(b []byte) (any, error) {
			var val T
			if err := codec.NewDecoderBytes(b, msgpackHandle).Decode(&val); err != nil {
				return nil, fmt.Errorf("decode component %d: %w", id, err)
			}
			return val, nil
		},
		read: func(entry *donburi.Entry) (any, bool) {
			if !entry.HasComponent(comp) {
				return nil, false
			}
			return *comp.Get(entry), true
		},
		write: func(entry *donburi.Entry, v any) {
			if !entry.HasComponent(comp) {
				entry.AddComponent(comp)
			}
			comp.SetValue(entry, v.(T))
		},
	}
	for _, apply := range opts {
		apply(e)
	}

	switch e.Mode {
	case ModeInterpolated:
		if e.Interp == nil {
			return &ConfigurationError{Reason: fmt.Sprintf("component %d is Interpolated but has no interpolation function", id)}
		}
	case ModePredicted:
		if e.Interp == nil {
			return &ConfigurationError{Reason: fmt.Sprintf("component %d is Predicted but has no interpolation function", id)}
		}
		if e.Correction == nil {
			return &ConfigurationError{Reason: fmt.Sprintf("component %d is Predicted but has no correction function", id)}
		}
	}

	r.byId[id] = e
	r.byType[comp] = e
	return nil
}

// Freeze makes the registry read-only. Called once when the simulation
// starts.
func (r *Registry) Freeze() {
	r.frozen = true
}

func (r *Registry) ById(id uint) (*Entry, bool) {
	e, ok := r.byId[id]
	return e, ok
}

func (r *Registry) ByType(c donburi.IComponentType) (*Entry, bool) {
	e, ok := r.byType[c]
	return e, ok
}

// Entries returns all registered entries ordered by id, so senders emit
// components deterministically.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.byId))
	for _, e := range r.byId {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

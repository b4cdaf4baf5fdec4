package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Command is an immutable instruction value placed on the queue for
// asynchronous execution. The type tag selects the handler and the payload
// schema; the value itself carries no behavior.
type Command interface {
	CommandType() string
}

// Handler executes one command. Returning an error sends the queue entry
// back to pending (or to failed once attempts are exhausted).
type Handler interface {
	Handle(ctx context.Context, cmd Command) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, cmd Command) error

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) error { return f(ctx, cmd) }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes a command into the {type, data} wire form stored
// in the queue's payload column.
func EncodePayload(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.CommandType(), err)
	}
	return json.Marshal(envelope{Type: cmd.CommandType(), Data: data})
}

type registration struct {
	proto   reflect.Type
	handler Handler
}

// Registry is the composite command handler: it maps a command's type tag to
// its payload schema and handler, and dispatches exactly one handler per
// command. A payload with an unregistered type is a silent no-op so the same
// queue can be shared by processes that only know a subset of types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]registration)}
}

// Register binds proto's command type to h. proto is only used as the
// payload schema; a fresh value is decoded per dispatch.
func (r *Registry) Register(proto Command, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := reflect.TypeOf(proto)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.types[proto.CommandType()] = registration{proto: t, handler: h}
}

// Decode rebuilds the command value carried by payload. The boolean reports
// whether the type is known to this registry.
func (r *Registry) Decode(payload []byte) (Command, bool, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, false, fmt.Errorf("decode envelope: %w", err)
	}
	r.mu.RLock()
	reg, ok := r.types[env.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	v := reflect.New(reg.proto)
	if err := json.Unmarshal(env.Data, v.Interface()); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	cmd, ok := v.Elem().Interface().(Command)
	if !ok {
		return nil, true, fmt.Errorf("type %s does not implement Command", env.Type)
	}
	return cmd, true, nil
}

// HandlePayload decodes and dispatches one stored payload. Unknown types
// complete successfully without side effects.
func (r *Registry) HandlePayload(ctx context.Context, payload []byte) error {
	cmd, known, err := r.Decode(payload)
	if err != nil {
		return err
	}
	if !known {
		return nil
	}
	r.mu.RLock()
	reg := r.types[cmd.CommandType()]
	r.mu.RUnlock()
	return reg.handler.Handle(ctx, cmd)
}

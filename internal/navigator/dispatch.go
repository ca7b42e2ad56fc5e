package navigator

import (
	"context"
	"sort"
	"sync"

	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

// HandlerFunc handles one command type. parameter is the command's raw parameter.
type HandlerFunc func(ctx context.Context, parameter string) error

// Dispatcher maps command types to exactly one handler each.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[scenes.CommandType]HandlerFunc
}

// NewDispatcher returns a dispatcher with no handlers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[scenes.CommandType]HandlerFunc),
	}
}

// Register installs h for t, replacing any previous handler.
func (d *Dispatcher) Register(t scenes.CommandType, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, t)
		return
	}
	d.handlers[t] = h
}

// Dispatch invokes the handler registered for cmd.Type.
// Unregistered types are not handled and return no error.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd scenes.Command) (bool, error) {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Type]
	d.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return true, h(ctx, cmd.Parameter)
}

// Types returns the registered command types, sorted.
func (d *Dispatcher) Types() []scenes.CommandType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]scenes.CommandType, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

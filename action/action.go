package action

import (
	"fmt"
	"sync"
)

// Context carries execution scope into an action. Data is the flow's
// accumulated data map (initial input plus prior node outputs).
type Context struct {
	TenantId string
	FlowId   string
	NodeId   string
	Data     map[string]any
}

// Action is the node execution contract. A returned error fails the node;
// the error message is recorded verbatim in the node state.
type Action interface {
	Name() string
	Execute(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error)
}

type ActionFunc func(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error)

type funcAction struct {
	name string
	fn   ActionFunc
}

func (a *funcAction) Name() string {
	return a.name
}

func (a *funcAction) Execute(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error) {
	return a.fn(input, config, ctx)
}

// Marker actions the engine intercepts before dispatch: the node parks
// instead of executing.
const ACTION_WAIT = "wait"
const ACTION_MANUAL = "manual"
const ACTION_DELAY = "delay"

type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

func NewRegistry() *Registry {
	r := &Registry{
		actions: make(map[string]Action),
	}
	r.Register(NewJsAction())
	r.Register(NewJsonMapAction())
	r.Register(NewLogAction())
	for _, marker := range []string{ACTION_WAIT, ACTION_MANUAL, ACTION_DELAY} {
		name := marker
		r.RegisterFunc(name, func(input map[string]any, config map[string]any, ctx *Context) (map[string]any, error) {
			return nil, fmt.Errorf("action %s is engine-managed and can not execute directly", name)
		})
	}
	return r
}

func (r *Registry) Register(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.Name()] = a
}

func (r *Registry) RegisterFunc(name string, fn ActionFunc) {
	r.Register(&funcAction{name: name, fn: fn})
}

func (r *Registry) Get(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("action %s not registered", name)
	}
	return a, nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

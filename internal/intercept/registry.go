package intercept

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

// ErrUnknownCommand is returned when executing a name with no command.
var ErrUnknownCommand = errors.New("unknown command")

// Args are the arguments of one command invocation.
type Args map[string]any

// Affirmed reports whether the invocation is a replay of an already
// affirmed action.
func (a Args) Affirmed() bool {
	v, _ := a["affirmed"].(bool)
	return v
}

// String returns a string argument, or "".
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Command is a host command.
type Command func(ctx context.Context, args Args) (any, error)

// Registry maps command names to commands.
type Registry struct {
	mu   sync.RWMutex
	cmds map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]Command)}
}

// Add registers cmd under name, replacing any existing command.
func (r *Registry) Add(name string, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds[name] = cmd
}

// Get returns the command registered under name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cmds[name]
	return c, ok
}

// Execute runs the command registered under name.
func (r *Registry) Execute(ctx context.Context, name string, args Args) (any, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return c(ctx, args)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.cmds))
	for n := range r.cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type commandRef struct {
	reg  *Registry
	name string
}

// Interceptor replaces registry commands with gated versions.
type Interceptor struct {
	gate   Requester
	logger *slog.Logger
	param  string

	mu        sync.Mutex
	originals map[commandRef]Command
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithAffirmParam sets the query parameter gated commands append to
// affirmed URLs.
func WithAffirmParam(param string) InterceptorOption {
	return func(i *Interceptor) { i.param = param }
}

// configured is satisfied by *gate.Gate.
type configured interface {
	Config() *policy.Config
}

// NewInterceptor creates an Interceptor that asks r before running any
// attached command. When r carries a policy, its affirm_param is used
// unless WithAffirmParam overrides it.
func NewInterceptor(r Requester, logger *slog.Logger, opts ...InterceptorOption) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Interceptor{gate: r, logger: logger, originals: make(map[commandRef]Command)}
	if c, ok := r.(configured); ok && c.Config() != nil {
		i.param = c.Config().AffirmParam
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Attach gates the command registered as name behind kind. The original
// command is captured on first attach, so attaching again reinstalls the
// gate around the same original instead of wrapping the gate twice. A
// missing command is reported as model.ErrHostUnavailable.
func (i *Interceptor) Attach(reg *Registry, name string, kind model.ActionKind) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	ref := commandRef{reg: reg, name: name}
	orig, ok := i.originals[ref]
	if !ok {
		orig, ok = reg.Get(name)
		if !ok {
			i.logger.Warn("command not registered, skipping", "command", name, "kind", kind)
			return fmt.Errorf("%w: command %s", model.ErrHostUnavailable, name)
		}
		i.originals[ref] = orig
	}

	guarded := Guard(i.gate, kind, Func[Args, any](orig))
	reg.Add(name, func(ctx context.Context, args Args) (any, error) {
		if i.param != "" {
			ctx = WithParam(ctx, i.param)
		}
		if args.Affirmed() {
			return orig(WithAffirmed(ctx), args)
		}
		return guarded(ctx, args)
	})
	i.logger.Debug("command gated", "command", name, "kind", kind)
	return nil
}

// Original returns the captured original of an attached command.
func (i *Interceptor) Original(reg *Registry, name string) (Command, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	c, ok := i.originals[commandRef{reg: reg, name: name}]
	return c, ok
}

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/launchdash/kit"
)

var (
	// ErrUnknownComponent is returned for a control ID the app does not know.
	ErrUnknownComponent = errors.New("dashboard: unknown component")
	// ErrDuplicateOutput is returned when an output already has a callback.
	ErrDuplicateOutput = errors.New("dashboard: output already has a callback")
)

// Output is the component property a callback writes.
type Output struct {
	ComponentID string
	Property    string
}

// Input is a component property a callback reads.
type Input struct {
	ComponentID string
	Property    string
}

type callback struct {
	output   Output
	inputs   []Input
	endpoint kit.Endpoint
	// render is the endpoint without middlewares, used for page loads.
	render kit.Endpoint
}

func (cb *callback) triggeredBy(changed []string) bool {
	for _, in := range cb.inputs {
		if slices.Contains(changed, in.ComponentID) {
			return true
		}
	}
	return false
}

// App is the reactive layer: controls with default values and callbacks
// subscribed to them. Dispatch runs one event at a time.
type App struct {
	logger *slog.Logger
	mws    []kit.Middleware

	mu        sync.Mutex
	defaults  Values
	callbacks []*callback
}

// NewApp creates an empty app. Middlewares wrap every callback endpoint,
// the first one outermost.
func NewApp(logger *slog.Logger, mws ...kit.Middleware) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{logger: logger, mws: mws, defaults: Values{}}
}

// Control declares an input control and its initial value.
func (a *App) Control(id string, initial any) error {
	raw, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("dashboard: control %s: %w", id, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.defaults[id] = raw
	return nil
}

// Callback subscribes endpoint to inputs. The endpoint receives the merged
// Values of the event and returns the new value of out. Every input must be
// a declared control and each output has at most one callback.
func (a *App) Callback(out Output, inputs []Input, endpoint kit.Endpoint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, cb := range a.callbacks {
		if cb.output == out {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateOutput, out.ComponentID, out.Property)
		}
	}
	if len(inputs) == 0 {
		return fmt.Errorf("dashboard: callback for %s has no inputs", out.ComponentID)
	}
	for _, in := range inputs {
		if _, ok := a.defaults[in.ComponentID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownComponent, in.ComponentID)
		}
	}
	cb := &callback{
		output:   out,
		inputs:   slices.Clone(inputs),
		endpoint: endpoint,
		render:   endpoint,
	}
	if len(a.mws) > 0 {
		cb.endpoint = kit.Chain(a.mws...)(endpoint)
	}
	a.callbacks = append(a.callbacks, cb)
	return nil
}

// Defaults returns a copy of the initial control values.
func (a *App) Defaults() Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.defaults.clone()
}

// Dispatch handles one input-change event. Missing values fall back to the
// control defaults; values for undeclared controls are ignored. Every
// callback subscribed to a changed control runs, in registration order, and
// the result maps output component IDs to their new values.
//
// A failing callback is logged and its output left out of the result.
func (a *App) Dispatch(ctx context.Context, changed []string, values Values) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range changed {
		if _, ok := a.defaults[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, id)
		}
	}
	merged := a.defaults.clone()
	for id, raw := range values {
		if _, ok := merged[id]; ok {
			merged[id] = raw
		}
	}
	return a.run(ctx, changed, merged, func(cb *callback) kit.Endpoint {
		if !cb.triggeredBy(changed) {
			return nil
		}
		return cb.endpoint
	}), nil
}

// Initial runs every callback against the default values to render a page
// load. It bypasses the middlewares: a page load is not an input event.
func (a *App) Initial(ctx context.Context) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	changed := make([]string, 0, len(a.defaults))
	for id := range a.defaults {
		changed = append(changed, id)
	}
	slices.Sort(changed)
	return a.run(ctx, changed, a.defaults.clone(), func(cb *callback) kit.Endpoint { return cb.render })
}

// run calls the endpoint pick returns for each callback, skipping nil.
func (a *App) run(ctx context.Context, changed []string, values Values, pick func(*callback) kit.Endpoint) map[string]any {
	ctx = kit.WithChanged(ctx, changed)
	out := make(map[string]any)
	for _, cb := range a.callbacks {
		endpoint := pick(cb)
		if endpoint == nil {
			continue
		}
		start := time.Now()
		resp, err := endpoint(kit.WithCallback(ctx, cb.output.ComponentID), values)
		if err != nil {
			a.logger.Warn("dashboard: callback failed",
				"output", cb.output.ComponentID, "changed", changed, "error", err)
			continue
		}
		a.logger.Debug("dashboard: callback",
			"output", cb.output.ComponentID, "duration", time.Since(start))
		out[cb.output.ComponentID] = resp
	}
	return out
}

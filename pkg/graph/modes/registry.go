package modes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/graph"
	"sdm-platform-be/pkg/graph/nodes"
)

const moduleName = "graph.modes"

const (
	ModeAssistant  = "assistant"
	ModeAutonomous = "autonomous"

	DefaultMode = ModeAssistant
)

// RouterFactory builds the human_turn router of a mode.
type RouterFactory func(log logger.ILogger) graph.RouteFunc

// Registry maps mode names to routers. It is constructed explicitly and passed
// to whoever compiles graphs.
type Registry struct {
	mu      sync.RWMutex
	routers map[string]RouterFactory
}

// NewRegistry returns a registry with the assistant and autonomous modes.
func NewRegistry() *Registry {
	r := &Registry{routers: make(map[string]RouterFactory)}
	r.Register(ModeAssistant, nodes.AssistantRouter)
	r.Register(ModeAutonomous, nodes.AutonomousRouter)
	return r
}

func (r *Registry) Register(mode string, router RouterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routers[mode] = router
}

// Modes lists the registered modes in sorted order.
func (r *Registry) Modes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modes := make([]string, 0, len(r.routers))
	for m := range r.routers {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

// Build compiles the conversation graph for mode.
func (r *Registry) Build(mode string, deps Deps) (*graph.CompiledGraph, error) {
	r.mu.RLock()
	factory, ok := r.routers[mode]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q, valid modes: %s", graph.ErrUnknownMode, mode, strings.Join(r.Modes(), ", "))
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("build %s graph: llm provider is required", mode)
	}

	opts := append([]graph.CompileOption{graph.WithLogger(deps.Logger)}, deps.Options...)
	compiled, err := buildTopology(factory(deps.Logger), deps).Compile(deps.Checkpointer, opts...)
	if err != nil {
		return nil, fmt.Errorf("build %s graph: %w", mode, err)
	}
	return compiled, nil
}

// Resolve returns mode when registered, otherwise logs a warning and falls back to
// the default mode.
func (r *Registry) Resolve(mode string, log logger.ILogger) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return DefaultMode
	}
	r.mu.RLock()
	_, ok := r.routers[mode]
	r.mu.RUnlock()
	if ok {
		return mode
	}
	if log != nil {
		log.Warn(moduleName, "Unknown graph mode, falling back to default", map[string]interface{}{
			"mode":        mode,
			"default":     DefaultMode,
			"valid_modes": r.Modes(),
		})
	}
	return DefaultMode
}

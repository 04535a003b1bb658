package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"sdm-platform-be/internal/pkg/logger"
	"sdm-platform-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const moduleName = "graph"

const defaultMaxSteps = 25

// NodeFunc receives a private copy of the state and returns the next state.
type NodeFunc func(ctx context.Context, state State, cfg RunConfig) (State, error)

// RouteFunc picks a branch key after a node has run.
type RouteFunc func(state State) string

// Observer is notified after every node. Implementations must be cheap.
type Observer interface {
	NodeFinished(node string, elapsed time.Duration, err error)
}

type branch struct {
	route   RouteFunc
	mapping map[string]string
}

// StateGraph collects nodes and edges before compilation.
type StateGraph struct {
	nodes    map[string]NodeFunc
	edges    map[string]string
	branches map[string]branch
	entry    string
}

func NewStateGraph() *StateGraph {
	return &StateGraph{
		nodes:    make(map[string]NodeFunc),
		edges:    make(map[string]string),
		branches: make(map[string]branch),
	}
}

func (g *StateGraph) AddNode(name string, fn NodeFunc) *StateGraph {
	g.nodes[name] = fn
	return g
}

func (g *StateGraph) AddEdge(from, to string) *StateGraph {
	g.edges[from] = to
	return g
}

// AddConditionalEdges routes by the key the route func returns. A nil mapping uses the
// key itself as the target node.
func (g *StateGraph) AddConditionalEdges(from string, route RouteFunc, mapping map[string]string) *StateGraph {
	g.branches[from] = branch{route: route, mapping: mapping}
	return g
}

func (g *StateGraph) SetEntryPoint(name string) *StateGraph {
	g.entry = name
	return g
}

type compileOptions struct {
	locker   ThreadLocker
	maxSteps int
	logger   logger.ILogger
	observer Observer
}

type CompileOption func(*compileOptions)

func WithLocker(l ThreadLocker) CompileOption {
	return func(o *compileOptions) { o.locker = l }
}

func WithMaxSteps(n int) CompileOption {
	return func(o *compileOptions) { o.maxSteps = n }
}

func WithLogger(l logger.ILogger) CompileOption {
	return func(o *compileOptions) { o.logger = l }
}

func WithObserver(obs Observer) CompileOption {
	return func(o *compileOptions) { o.observer = obs }
}

// Compile validates the topology and binds it to a checkpointer.
func (g *StateGraph) Compile(checkpointer Checkpointer, opts ...CompileOption) (*CompiledGraph, error) {
	if checkpointer == nil {
		return nil, fmt.Errorf("compile graph: checkpointer is required")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("compile graph: entry point %q is not a node", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("compile graph: edge from unknown node %q", from)
		}
		if to != END {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("compile graph: edge to unknown node %q", to)
			}
		}
	}
	for from, b := range g.branches {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("compile graph: branch from unknown node %q", from)
		}
		if _, dup := g.edges[from]; dup {
			return nil, fmt.Errorf("compile graph: node %q has both an edge and a branch", from)
		}
		for key, to := range b.mapping {
			if _, ok := g.nodes[to]; !ok && to != END {
				return nil, fmt.Errorf("compile graph: branch %q of %q targets unknown node %q", key, from, to)
			}
		}
	}
	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasBranch := g.branches[name]
		if !hasEdge && !hasBranch {
			return nil, fmt.Errorf("compile graph: node %q has no outgoing edge", name)
		}
	}

	o := compileOptions{maxSteps: defaultMaxSteps}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = NewLocalLocker()
	}
	if o.logger == nil {
		o.logger = logger.NewNopLogger()
	}

	return &CompiledGraph{
		nodes:        copyNodes(g.nodes),
		edges:        copyEdges(g.edges),
		branches:     copyBranches(g.branches),
		entry:        g.entry,
		checkpointer: checkpointer,
		locker:       o.locker,
		maxSteps:     o.maxSteps,
		logger:       o.logger,
		observer:     o.observer,
		tracer:       otel.Tracer("sdm-platform-be/graph"),
	}, nil
}

// CompiledGraph is an invokable topology keyed by thread id. Safe for concurrent use.
type CompiledGraph struct {
	nodes        map[string]NodeFunc
	edges        map[string]string
	branches     map[string]branch
	entry        string
	checkpointer Checkpointer
	locker       ThreadLocker
	maxSteps     int
	logger       logger.ILogger
	observer     Observer
	tracer       trace.Tracer
}

// Result describes one finished turn.
type Result struct {
	State State
	// Path lists the visited nodes, ending with END.
	Path []string
	// Reply is the final AI message of the turn, nil when the assistant stayed silent.
	Reply *llm.Message
}

// Invoke runs one turn for cfg.ThreadID. Turns on the same thread are serialised.
func (g *CompiledGraph) Invoke(ctx context.Context, input Input, cfg RunConfig) (*Result, error) {
	if cfg.ThreadID == "" {
		return nil, ErrMissingThreadID
	}

	release, err := g.locker.Acquire(ctx, cfg.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("acquire thread %s: %w", cfg.ThreadID, err)
	}
	defer release()

	var state State
	last, err := g.checkpointer.Get(ctx, cfg.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", cfg.ThreadID, err)
	}
	if last != nil {
		state = last.State.Clone()
	}

	if dropped := state.beginTurn(input); dropped > 0 {
		g.logger.Warn(moduleName, "Replaying turn for redelivered input", map[string]interface{}{
			"thread_id": cfg.ThreadID,
			"dropped":   dropped,
		})
	}
	known := make(map[string]struct{}, len(state.Messages))
	for _, m := range state.Messages {
		known[m.ID] = struct{}{}
	}
	if err := g.checkpointer.Put(ctx, cfg.ThreadID, state, SnapshotInput); err != nil {
		return nil, fmt.Errorf("checkpoint input for %s: %w", cfg.ThreadID, err)
	}

	path := make([]string, 0, 8)
	current := g.entry
	for steps := 0; current != END; steps++ {
		if steps >= g.maxSteps {
			return nil, fmt.Errorf("%w after %d steps (thread %s)", ErrStepLimitExceeded, steps, cfg.ThreadID)
		}
		path = append(path, current)

		next, err := g.runNode(ctx, current, state, cfg)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", current, err)
		}

		target, err := g.resolve(current, next)
		if err != nil {
			return nil, err
		}
		next.NextState = target
		if err := g.checkpointer.Put(ctx, cfg.ThreadID, next, current); err != nil {
			return nil, fmt.Errorf("checkpoint after %s: %w", current, err)
		}
		state = next
		current = target
	}
	path = append(path, END)

	return &Result{
		State: state,
		Path:  path,
		Reply: finalReply(state, known),
	}, nil
}

// GetState returns the latest snapshot of a thread, or nil.
func (g *CompiledGraph) GetState(ctx context.Context, threadID string) (*Snapshot, error) {
	return g.checkpointer.Get(ctx, threadID)
}

// History returns every snapshot of a thread, oldest first.
func (g *CompiledGraph) History(ctx context.Context, threadID string) ([]Snapshot, error) {
	return g.checkpointer.History(ctx, threadID)
}

// UpdateState appends messages outside a turn (e.g. an assistant-initiated message).
// Citations and decision aids are cleared since the new messages carry none.
func (g *CompiledGraph) UpdateState(ctx context.Context, threadID string, msgs ...llm.Message) (*State, error) {
	if threadID == "" {
		return nil, ErrMissingThreadID
	}
	release, err := g.locker.Acquire(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("acquire thread %s: %w", threadID, err)
	}
	defer release()

	var state State
	last, err := g.checkpointer.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", threadID, err)
	}
	if last != nil {
		state = last.State.Clone()
	}
	state.AddMessages(msgs...)
	state.TurnCitations = nil
	state.TurnDecisionAids = nil
	if err := g.checkpointer.Put(ctx, threadID, state, SnapshotUpdateState); err != nil {
		return nil, fmt.Errorf("checkpoint update for %s: %w", threadID, err)
	}
	return &state, nil
}

// DeleteThread removes every checkpoint of a thread.
func (g *CompiledGraph) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return ErrMissingThreadID
	}
	release, err := g.locker.Acquire(ctx, threadID)
	if err != nil {
		return fmt.Errorf("acquire thread %s: %w", threadID, err)
	}
	defer release()
	return g.checkpointer.Delete(ctx, threadID)
}

func (g *CompiledGraph) runNode(ctx context.Context, name string, state State, cfg RunConfig) (out State, err error) {
	ctx, span := g.tracer.Start(ctx, "graph.node/"+name, trace.WithAttributes(
		attribute.String("thread.id", cfg.ThreadID),
		attribute.String("graph.node", name),
	))
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.logger.Error(moduleName, "Node failed", map[string]interface{}{
				"node":      name,
				"thread_id": cfg.ThreadID,
				"error":     err.Error(),
			})
		}
		if g.observer != nil {
			g.observer.NodeFinished(name, time.Since(started), err)
		}
		span.End()
	}()

	return g.nodes[name](ctx, state.Clone(), cfg)
}

func (g *CompiledGraph) resolve(from string, state State) (string, error) {
	if to, ok := g.edges[from]; ok {
		return to, nil
	}
	b := g.branches[from]
	key := b.route(state)
	if b.mapping == nil {
		if _, ok := g.nodes[key]; ok || key == END {
			return key, nil
		}
		return "", fmt.Errorf("node %s routed to unknown node %q", from, key)
	}
	to, ok := b.mapping[key]
	if !ok {
		keys := make([]string, 0, len(b.mapping))
		for k := range b.mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("node %s routed to %q, expected one of [%s]", from, key, strings.Join(keys, ", "))
	}
	return to, nil
}

func finalReply(state State, known map[string]struct{}) *llm.Message {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if _, old := known[m.ID]; old {
			return nil
		}
		if m.Role == llm.RoleAI && !m.HasToolCalls() {
			reply := m
			return &reply
		}
	}
	return nil
}

func copyNodes(in map[string]NodeFunc) map[string]NodeFunc {
	out := make(map[string]NodeFunc, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyEdges(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyBranches(in map[string]branch) map[string]branch {
	out := make(map[string]branch, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

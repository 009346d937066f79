// Package executor owns the run state machine: it loads a pending run,
// validates and orders its graph, reserves credits, walks nodes in
// topological order through the dispatcher and batch planner, and
// finalizes the run record with its trace.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/batch"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/credits"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/dispatch"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/execctx"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/graph"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/metrics"
	"github.com/chigozzdevv/zecflow-sub000/common/cache"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
)

// ErrRunCancelled marks a run stopped by external cancellation
var ErrRunCancelled = errors.New("cancelled")

// WorkflowStore loads workflow records
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
}

// RunStore loads and finalizes run records. Updates are strongly
// consistent for the single executor owning the run.
type RunStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Finish(ctx context.Context, id uuid.UUID, status models.RunStatus, result *models.RunResult) error
}

// GraphBuilder materializes a runnable graph from stored blocks
type GraphBuilder interface {
	Materialize(ctx context.Context, workflowID uuid.UUID) (*models.WorkflowGraph, error)
}

// CancelChecker reports whether a run was cancelled externally. Checked
// between node dispatches.
type CancelChecker interface {
	Cancelled(ctx context.Context, runID uuid.UUID) bool
}

// TriggerFilter gates run start on the workflow's payload filter
type TriggerFilter interface {
	Allow(expression string, payload map[string]any) (bool, error)
}

// RateLimiter bounds runs started per org
type RateLimiter interface {
	Allow(ctx context.Context, org string) (bool, error)
}

// Executor drives runs to a terminal state
type Executor struct {
	workflows WorkflowStore
	runs      RunStore
	builder   GraphBuilder
	graphs    *cache.GraphCache
	credits   *credits.Planner
	dispatch  *dispatch.Dispatcher
	batches   *batch.Planner
	filter    TriggerFilter
	cancel    CancelChecker
	limiter   RateLimiter
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// Opts contains the executor's collaborators. Filter, Cancel, Limiter
// and Metrics are optional.
type Opts struct {
	Workflows WorkflowStore
	Runs      RunStore
	Builder   GraphBuilder
	Graphs    *cache.GraphCache
	Credits   *credits.Planner
	Dispatch  *dispatch.Dispatcher
	Batches   *batch.Planner
	Filter    TriggerFilter
	Cancel    CancelChecker
	Limiter   RateLimiter
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// New creates an executor
func New(opts *Opts) *Executor {
	return &Executor{
		workflows: opts.Workflows,
		runs:      opts.Runs,
		builder:   opts.Builder,
		graphs:    opts.Graphs,
		credits:   opts.Credits,
		dispatch:  opts.Dispatch,
		batches:   opts.Batches,
		filter:    opts.Filter,
		cancel:    opts.Cancel,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
}

// Execute drives one run from pending to a terminal state. The caller
// must own the run: at most one executor instance processes a given
// run at a time.
func (e *Executor) Execute(ctx context.Context, runID uuid.UUID) error {
	log := e.log.WithRunID(runID.String())
	started := time.Now()

	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run.Terminal() {
		log.Warn("run already terminal", "status", run.Status)
		return nil
	}

	if err := e.runs.MarkRunning(ctx, runID); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	e.metrics.RunStarted()

	status, result := e.run(ctx, run, log)

	if err := e.runs.Finish(ctx, runID, status, result); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	e.metrics.RunFinished(string(status), time.Since(started))

	log.Info("run finished", "status", status, "steps", len(result.Steps), "duration_ms", time.Since(started).Milliseconds())
	return nil
}

// run produces the terminal status and result. Pre-dispatch failures
// (graph, filter, credits) carry no steps; node failures carry the
// partial history ending in the failing step.
func (e *Executor) run(ctx context.Context, run *models.Run, log *logger.Logger) (models.RunStatus, *models.RunResult) {
	workflow, err := e.workflows.GetWorkflow(ctx, run.WorkflowID)
	if err != nil {
		return models.RunFailed, &models.RunResult{Error: fmt.Sprintf("load workflow: %v", err)}
	}

	g, err := e.loadGraph(ctx, workflow, run)
	if err != nil {
		return models.RunFailed, &models.RunResult{Error: err.Error()}
	}

	order, err := validateAndSort(g)
	if err != nil {
		return models.RunFailed, &models.RunResult{Error: err.Error()}
	}

	if workflow.TriggerFilter != "" && e.filter != nil {
		allowed, err := e.filter.Allow(workflow.TriggerFilter, run.Payload)
		if err != nil {
			return models.RunFailed, &models.RunResult{Error: fmt.Sprintf("trigger filter: %v", err)}
		}
		if !allowed {
			return models.RunFailed, &models.RunResult{Error: "trigger filter rejected payload"}
		}
	}

	if e.limiter != nil {
		allowed, err := e.limiter.Allow(ctx, run.OrgID)
		if err != nil {
			log.Warn("rate limiter unavailable, allowing run", "error", err)
		} else if !allowed {
			return models.RunFailed, &models.RunResult{Error: fmt.Sprintf("run rate limit exceeded for org %s", run.OrgID)}
		}
	}

	required := e.credits.Plan(g)
	if err := e.credits.Reserve(ctx, run.OrgID, required); err != nil {
		return models.RunFailed, &models.RunResult{Error: err.Error()}
	}

	env := &dispatch.Env{
		RunID:   run.ID.String(),
		Payload: run.Payload,
		Ctx:     execctx.New(),
		Graph:   g,
	}

	steps, err := e.walk(ctx, env, order, log)
	if err != nil {
		if errors.Is(err, ErrRunCancelled) {
			return models.RunFailed, &models.RunResult{Steps: steps, Error: ErrRunCancelled.Error()}
		}
		return models.RunFailed, &models.RunResult{Steps: steps, Error: err.Error()}
	}

	outputs := collectOutputs(env)

	if err := e.credits.Commit(ctx, run.OrgID, required, "run "+run.ID.String()); err != nil {
		// Side effects already happened and are not compensated; the
		// divergence is surfaced as a distinct terminal error for
		// operator reconciliation.
		log.Error("billing commit failed after successful run", "error", err)
		return models.RunFailed, &models.RunResult{Steps: steps, Outputs: outputs, Error: "billing commit failed"}
	}
	e.metrics.CreditsCommitted(required)

	return models.RunSucceeded, &models.RunResult{
		Steps:       steps,
		Outputs:     outputs,
		CreditsUsed: required,
	}
}

// loadGraph returns the published graph, materializing when the
// workflow has none embedded, and applies any run-level patch
func (e *Executor) loadGraph(ctx context.Context, workflow *models.Workflow, run *models.Run) (*models.WorkflowGraph, error) {
	g := workflow.Graph
	if g == nil {
		if e.graphs != nil {
			if cached, found := e.graphs.Get(ctx, workflow.ID, workflow.Version); found {
				g = cached
			}
		}
		if g == nil {
			materialized, err := e.builder.Materialize(ctx, workflow.ID)
			if err != nil {
				return nil, err
			}
			g = materialized
			if e.graphs != nil {
				if err := e.graphs.Put(ctx, workflow.ID, workflow.Version, g); err != nil {
					e.log.Warn("graph cache write failed", "workflow_id", workflow.ID, "error", err)
				}
			}
		}
	}

	if len(run.GraphPatch) > 0 {
		patched, err := graph.ApplyPatch(g, run.GraphPatch)
		if err != nil {
			return nil, err
		}
		g = patched
	}

	return g, nil
}

func validateAndSort(g *models.WorkflowGraph) ([]string, error) {
	if err := graph.Validate(g); err != nil {
		return nil, err
	}
	return graph.TopoSort(g)
}

// walk dispatches nodes in topological order. The first failure aborts
// iteration with the failing step appended last; cancellation aborts
// with no extra step.
func (e *Executor) walk(ctx context.Context, env *dispatch.Env, order []string, log *logger.Logger) ([]models.ExecutionStep, error) {
	executed := make(map[string]bool, len(order))
	steps := make([]models.ExecutionStep, 0, len(order))

	for pos, id := range order {
		if executed[id] {
			continue
		}

		node := env.Graph.Node(id)
		if node == nil {
			return steps, fmt.Errorf("node %s missing from graph", id)
		}
		if node.Type == models.NodeOutput {
			continue
		}

		if e.cancelled(ctx, env) {
			log.Info("run cancelled, stopping dispatch", "node_id", id)
			return steps, ErrRunCancelled
		}

		if dispatch.MPCEligible(node.BlockID) {
			batchSteps, err := e.runBatch(ctx, env, order, pos, executed, log)
			steps = append(steps, batchSteps...)
			if err != nil {
				return steps, err
			}
			continue
		}

		step, err := e.runSingle(ctx, env, node, log)
		steps = append(steps, step)
		if err != nil {
			return steps, err
		}
		executed[id] = true
	}

	return steps, nil
}

func (e *Executor) cancelled(ctx context.Context, env *dispatch.Env) bool {
	if e.cancel == nil {
		return false
	}
	runID, err := uuid.Parse(env.RunID)
	if err != nil {
		return false
	}
	return e.cancel.Cancelled(ctx, runID)
}

// runSingle dispatches one non-MPC node and records its step
func (e *Executor) runSingle(ctx context.Context, env *dispatch.Env, node *models.GraphNode, log *logger.Logger) (models.ExecutionStep, error) {
	start := time.Now()
	result, err := e.dispatch.Dispatch(ctx, env, node)
	duration := time.Since(start)

	step := models.ExecutionStep{
		NodeID:     node.ID,
		BlockID:    node.BlockID,
		Inputs:     stepInputs(env, node),
		DurationMs: duration.Milliseconds(),
	}

	if err != nil {
		step.Status = models.StepFailed
		step.Error = err.Error()
		e.metrics.StepRecorded(node.BlockID, string(models.StepFailed), duration)
		log.Error("node dispatch failed", "node_id", node.ID, "block_id", node.BlockID, "error", err)
		return step, fmt.Errorf("node %s failed: %w", node.ID, err)
	}

	step.Status = models.StepSuccess
	step.Outputs = result
	e.metrics.StepRecorded(node.BlockID, string(models.StepSuccess), duration)

	writeOverlays(env, node, result)
	return step, nil
}

// runBatch plans, builds and executes an MPC batch starting at pos. A
// build error yields one failing step on the offending node; an
// adapter error yields one failing step per batch node, all with the
// same error.
func (e *Executor) runBatch(ctx context.Context, env *dispatch.Env, order []string, pos int, executed map[string]bool, log *logger.Logger) ([]models.ExecutionStep, error) {
	nodeIDs := e.batches.Plan(env, order, pos, executed)
	if len(nodeIDs) == 0 {
		nodeIDs = []string{order[pos]}
	}

	b, err := e.batches.Build(env, nodeIDs)
	if err != nil {
		var buildErr *batch.BuildError
		nodeID := order[pos]
		if errors.As(err, &buildErr) {
			nodeID = buildErr.NodeID
		}
		node := env.Graph.Node(nodeID)
		step := models.ExecutionStep{
			NodeID:  nodeID,
			BlockID: node.BlockID,
			Status:  models.StepFailed,
			Error:   err.Error(),
		}
		e.metrics.StepRecorded(node.BlockID, string(models.StepFailed), 0)
		return []models.ExecutionStep{step}, fmt.Errorf("node %s failed: %w", nodeID, err)
	}

	e.metrics.BatchSubmitted(len(b.NodeIDs))
	log.Debug("submitting MPC batch", "nodes", len(b.NodeIDs), "seed", order[pos])

	start := time.Now()
	results, err := e.batches.Execute(ctx, env, b)
	duration := time.Since(start)

	if err != nil {
		steps := make([]models.ExecutionStep, 0, len(b.NodeIDs))
		for _, id := range b.NodeIDs {
			node := env.Graph.Node(id)
			steps = append(steps, models.ExecutionStep{
				NodeID:     id,
				BlockID:    node.BlockID,
				Inputs:     b.Inputs[id],
				DurationMs: duration.Milliseconds(),
				Status:     models.StepFailed,
				Error:      err.Error(),
			})
			e.metrics.StepRecorded(node.BlockID, string(models.StepFailed), duration)
		}
		log.Error("MPC batch failed", "nodes", len(b.NodeIDs), "error", err)
		return steps, fmt.Errorf("batch failed: %w", err)
	}

	steps := make([]models.ExecutionStep, 0, len(b.NodeIDs))
	for _, id := range b.NodeIDs {
		node := env.Graph.Node(id)
		result := results[id]

		writeOverlays(env, node, result)
		executed[id] = true

		steps = append(steps, models.ExecutionStep{
			NodeID:     id,
			BlockID:    node.BlockID,
			Inputs:     b.Inputs[id],
			Outputs:    result,
			DurationMs: duration.Milliseconds(),
			Status:     models.StepSuccess,
		})
		e.metrics.StepRecorded(node.BlockID, string(models.StepSuccess), duration)
	}

	return steps, nil
}

// writeOverlays records a node result under every applicable name: the
// node id, the node alias, and any alias/responseAlias in block config
func writeOverlays(env *dispatch.Env, node *models.GraphNode, result any) {
	names := map[string]bool{node.ID: true}
	if node.Alias != "" {
		names[node.Alias] = true
	}
	if alias, ok := node.Data["alias"].(string); ok && alias != "" {
		names[alias] = true
	}
	if alias, ok := node.Data["responseAlias"].(string); ok && alias != "" {
		names[alias] = true
	}

	for name := range names {
		env.Ctx.SetResult(name, result)
		// Input nodes expose their value under the "value" handle
		if node.Type == models.NodeInput {
			env.Ctx.Set(name+".value", result)
		}
	}
}

// stepInputs captures the edge-provided inputs for the trace
func stepInputs(env *dispatch.Env, node *models.GraphNode) map[string]any {
	data := dispatch.GatherInputs(env, node)
	inputs, _ := data["__inputs"].(map[string]any)
	if len(inputs) == 0 {
		return nil
	}
	return inputs
}

// collectOutputs gathers the run's named outputs from output-node
// bindings: each incoming edge's context value is recorded under the
// output's fieldName, alias, or node id
func collectOutputs(env *dispatch.Env) map[string]any {
	outputs := make(map[string]any)
	for _, output := range env.Graph.OutputNodes() {
		for _, edge := range env.Graph.IncomingEdges(output.ID) {
			sourceHandle := edge.SourceHandle
			if sourceHandle == "" {
				sourceHandle = "result"
			}
			value, ok := env.Ctx.Get(edge.Source + "." + sourceHandle)
			if !ok {
				continue
			}

			name := output.ID
			if fieldName, isString := output.Data["fieldName"].(string); isString && fieldName != "" {
				name = fieldName
			} else if output.Alias != "" {
				name = output.Alias
			}
			outputs[name] = value
		}
	}
	return outputs
}

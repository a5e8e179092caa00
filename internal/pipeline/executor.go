// Package pipeline runs the staged agent review of one document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"findoc-backend/internal/agents"
	"findoc-backend/internal/documents"
	"findoc-backend/internal/extract"
	"findoc-backend/internal/shared/telemetry"
	"findoc-backend/internal/tools"
)

const (
	DefaultStageTimeout = 5 * time.Minute
	DefaultRunTimeout   = 20 * time.Minute
)

// State is the executor's position in a run.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Invoker runs one agent invocation. *agents.Runner implements it.
type Invoker interface {
	Invoke(ctx context.Context, spec agents.Spec, task agents.Task) (agents.Result, error)
}

// Observer receives stage transitions. Calls happen on the run's goroutine.
type Observer interface {
	OnStageStart(name string, index int)
	OnStageFinish(name string, index int, elapsed time.Duration, err error)
}

// Input is what one run needs.
type Input struct {
	Query    string
	Document documents.Handle
	// DocumentText loads the document's extracted text. The first successful load is reused
	// for the rest of the run.
	DocumentText func(ctx context.Context) (string, error)
	// LogFields are added to every log line of the run (job_id, request_id).
	LogFields map[string]any
}

// StageTrace summarizes one stage that ran.
type StageTrace struct {
	Name       string
	Role       string
	Elapsed    time.Duration
	Iterations int
	ToolCalls  int
}

// Result is a run's outcome. Output is only the final stage's text; intermediate outputs stay
// inside the run.
type Result struct {
	State  State
	Output string
	Trace  []StageTrace
}

// Executor runs a Pipeline. It holds no per-run state and may be shared.
type Executor struct {
	Pipeline     *Pipeline
	Agents       Invoker
	StageTimeout time.Duration
	RunTimeout   time.Duration
	Observer     Observer
}

// Execute runs every stage in order and stops at the first failure, which is returned as a
// *StageError.
func (e *Executor) Execute(ctx context.Context, in Input) (Result, error) {
	res := Result{State: NotStarted}
	if e.Pipeline == nil || e.Agents == nil {
		return res, errors.New("executor is not configured")
	}

	runTimeout := e.RunTimeout
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	shared := NewContext(documents.EffectiveQuery(in.Query), in.Document)
	env := tools.Env{
		Query:        shared.Query(),
		Document:     in.Document,
		DocumentText: memoize(in.DocumentText),
	}

	res.State = Running
	for i, stage := range e.Pipeline.stages {
		trace, err := e.runStage(runCtx, i, stage, shared, env, in.LogFields)
		res.Trace = append(res.Trace, trace)
		if err != nil {
			res.State = Failed
			return res, err
		}
	}

	last := e.Pipeline.stages[len(e.Pipeline.stages)-1].Name
	res.Output, _ = shared.Output(last)
	res.State = Completed
	return res, nil
}

func (e *Executor) runStage(runCtx context.Context, index int, stage Stage, shared *Context, env tools.Env, logFields map[string]any) (StageTrace, error) {
	trace := StageTrace{Name: stage.Name, Role: stage.Agent.Role}
	stageTimeout := e.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	stageCtx, cancel := context.WithTimeout(runCtx, stageTimeout)
	defer cancel()

	if e.Observer != nil {
		e.Observer.OnStageStart(stage.Name, index)
	}
	start := time.Now()
	output, result, kind, err := e.invoke(stageCtx, stage, shared, env)
	trace.Elapsed = time.Since(start)
	trace.Iterations = result.Iterations
	trace.ToolCalls = result.ToolCalls

	if err != nil {
		if kind == "" {
			kind = classify(stageCtx, err)
		}
		err = &StageError{Stage: stage.Name, Index: index, Kind: kind, Err: err}
	} else if recErr := shared.record(stage.Name, output); recErr != nil {
		err = &StageError{Stage: stage.Name, Index: index, Kind: KindInput, Err: recErr}
	}

	if e.Observer != nil {
		e.Observer.OnStageFinish(stage.Name, index, trace.Elapsed, err)
	}
	fields := map[string]any{
		"stage":       stage.Name,
		"index":       index,
		"role":        stage.Agent.Role,
		"duration_ms": trace.Elapsed.Milliseconds(),
		"iterations":  trace.Iterations,
		"tool_calls":  trace.ToolCalls,
	}
	for k, v := range logFields {
		fields[k] = v
	}
	if err != nil {
		se, _ := AsStageError(err)
		fields["kind"] = string(se.Kind)
		fields["error"] = se.Err
		telemetry.Warn("pipeline.stage", fields)
		return trace, err
	}
	fields["output_len"] = len(output)
	telemetry.Info("pipeline.stage", fields)
	return trace, nil
}

// invoke returns a non-empty kind only for failures that happen before the agent runs.
func (e *Executor) invoke(ctx context.Context, stage Stage, shared *Context, env tools.Env) (string, agents.Result, Kind, error) {
	if stage.LoadsDocument {
		if env.DocumentText == nil {
			return "", agents.Result{}, KindInput, errors.New("no document attached to this run")
		}
		text, err := env.DocumentText(ctx)
		if err == nil && strings.TrimSpace(text) == "" {
			err = extract.ErrEmptyText
		}
		if err != nil {
			kind := KindTool
			switch {
			case ctx.Err() != nil:
				kind = ""
			case errors.Is(err, extract.ErrEmptyText), errors.Is(err, extract.ErrUnreadable):
				kind = KindInput
			}
			return "", agents.Result{}, kind, fmt.Errorf("load document: %w", err)
		}
	}

	prompt, err := stage.prompt(shared)
	if err != nil {
		return "", agents.Result{}, KindInput, err
	}
	result, err := e.Agents.Invoke(ctx, stage.Agent, agents.Task{Prompt: prompt, Env: env})
	if err != nil {
		return "", result, "", err
	}
	return result.Output, result, "", nil
}

// memoize caches the first successful load.
func memoize(load func(ctx context.Context) (string, error)) func(ctx context.Context) (string, error) {
	if load == nil {
		return nil
	}
	var (
		mu     sync.Mutex
		done   bool
		cached string
	)
	return func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return cached, nil
		}
		text, err := load(ctx)
		if err != nil {
			return "", err
		}
		cached, done = text, true
		return cached, nil
	}
}

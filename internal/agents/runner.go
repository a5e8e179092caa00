package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"findoc-backend/internal/llm"
	"findoc-backend/internal/shared/telemetry"
	"findoc-backend/internal/tools"
)

// DelegateTool is offered to agents that may hand work to a coworker.
const DelegateTool = "delegate_work"

// Runner executes agent invocations. It is shared by all runs; the rate limiters are its only
// mutable state.
type Runner struct {
	LLM    llm.Client
	Tools  *tools.Registry
	Limits *Limiters
	Roster *Roster
}

// Task is one invocation's input.
type Task struct {
	Prompt string
	Env    tools.Env
}

// Result reports the final answer and what it took to get there.
type Result struct {
	Output      string
	Iterations  int
	ToolCalls   int
	Delegations int
}

// Invoke runs the agent's loop: up to MaxIterations model calls, executing requested tools
// between calls. The last permitted call is offered no tools, so the model must answer.
func (r *Runner) Invoke(ctx context.Context, spec Spec, task Task) (Result, error) {
	var res Result
	messages := []llm.Message{{Role: llm.RoleUser, Content: task.Prompt}}
	defs := r.definitions(spec)
	system := spec.SystemPrompt()

	for i := 0; i < spec.MaxIterations; i++ {
		final := i == spec.MaxIterations-1
		req := llm.Request{System: system, Messages: messages}
		if !final {
			req.Tools = defs
		}

		if err := r.Limits.Wait(ctx, spec.Role, spec.MaxCallsPerMinute); err != nil {
			return res, fmt.Errorf("rate limit wait: %w", err)
		}
		res.Iterations++
		resp, err := r.LLM.Complete(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			if errors.Is(err, llm.ErrEmptyResponse) {
				return res, ErrEmptyOutput
			}
			return res, &ModelError{Err: err}
		}

		if len(resp.ToolCalls) == 0 || final {
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				if len(resp.ToolCalls) > 0 {
					return res, ErrIterationsExhausted
				}
				return res, ErrEmptyOutput
			}
			res.Output = text
			r.log(spec, res)
			return res, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			res.ToolCalls++
			out, err := r.runTool(ctx, spec, task, call, &res)
			if err != nil {
				return res, err
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
	// MaxIterations < 1 is rejected by Validate.
	return res, ErrIterationsExhausted
}

func (r *Runner) definitions(spec Spec) []llm.ToolDefinition {
	defs := r.Tools.Definitions(spec.Tools)
	if spec.AllowDelegation && r.Roster != nil {
		if coworkers := r.Roster.Coworkers(spec.Key); len(coworkers) > 0 {
			roles := make([]string, 0, len(coworkers))
			for _, c := range coworkers {
				roles = append(roles, c.Role)
			}
			defs = append(defs, llm.ToolDefinition{
				Name: DelegateTool,
				Description: "Delegate a specific sub-task to a coworker. Input format: '<coworker role>: <task with all needed context>'. " +
					"Coworkers: " + strings.Join(roles, ", ") + ".",
			})
		}
	}
	return defs
}

// runTool executes one call. Calls the agent may not make are answered with an error message so
// the model can correct itself; failures inside a permitted tool end the invocation.
func (r *Runner) runTool(ctx context.Context, spec Spec, task Task, call llm.ToolCall, res *Result) (string, error) {
	if call.Name == DelegateTool {
		if !spec.AllowDelegation || r.Roster == nil {
			return "Error: delegation is not available to you. Answer the task yourself.", nil
		}
		out, ok, err := r.delegate(ctx, spec, task, call.Input)
		if err != nil {
			return "", &ToolError{Tool: DelegateTool, Err: err}
		}
		if ok {
			res.Delegations++
		}
		return out, nil
	}

	if !spec.CanUse(call.Name) || !r.Tools.Has(call.Name) {
		return fmt.Sprintf("Error: tool %q is not available to you. Available tools: %s.", call.Name, strings.Join(spec.Tools, ", ")), nil
	}
	out, err := r.Tools.Run(ctx, task.Env, call.Name, call.Input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &ToolError{Tool: call.Name, Err: err}
	}
	return out, nil
}

// delegate runs a coworker once with delegation disabled. ok is false when the input named no
// known coworker; the returned text then tells the model how to retry.
func (r *Runner) delegate(ctx context.Context, spec Spec, task Task, input string) (string, bool, error) {
	coworker, subtask, found := r.matchCoworker(spec.Key, input)
	if !found {
		roles := make([]string, 0)
		for _, c := range r.Roster.Coworkers(spec.Key) {
			roles = append(roles, c.Role)
		}
		return "Error: no coworker matches. Use '<coworker role>: <task>' with one of: " + strings.Join(roles, ", ") + ".", false, nil
	}

	telemetry.Info("agent.delegate", map[string]any{"from_role": spec.Role, "to_role": coworker.Role})
	prompt := fmt.Sprintf("%s asked you for help with the following task.\n\n%s\n\nThe user's question is: %s", spec.Role, subtask, task.Env.Query)
	sub, err := r.Invoke(ctx, coworker.withoutDelegation(), Task{Prompt: prompt, Env: task.Env})
	if err != nil {
		return "", false, fmt.Errorf("coworker %s: %w", coworker.Role, err)
	}
	return sub.Output, true, nil
}

func (r *Runner) matchCoworker(self, input string) (Spec, string, bool) {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	for _, c := range r.Roster.Coworkers(self) {
		role := strings.ToLower(c.Role)
		if strings.HasPrefix(lower, role) {
			rest := strings.TrimSpace(trimmed[len(role):])
			rest = strings.TrimSpace(strings.TrimLeft(rest, ":-|"))
			if rest == "" {
				return Spec{}, "", false
			}
			return c, rest, true
		}
	}
	return Spec{}, "", false
}

func (r *Runner) log(spec Spec, res Result) {
	telemetry.Info("agent.invoke", map[string]any{
		"role":        spec.Role,
		"iterations":  res.Iterations,
		"tool_calls":  res.ToolCalls,
		"delegations": res.Delegations,
		"output_len":  len(res.Output),
	})
}

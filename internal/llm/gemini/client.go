// Package gemini implements llm.Client on google.golang.org/genai, for either the Gemini API
// (API key) or Vertex AI (project + location).
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"findoc-backend/internal/llm"
	"findoc-backend/internal/shared/telemetry"
)

const defaultModel = "gemini-2.0-flash"

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Client implements llm.Client.
type Client struct {
	model       string
	temperature float32
	generate    generateFunc
}

// Options selects the backend. APIKey wins when set; otherwise Project and Location select Vertex AI.
type Options struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

// NewClient constructs a Gemini client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	cfg := &genai.ClientConfig{}
	switch {
	case strings.TrimSpace(opts.APIKey) != "":
		cfg.APIKey = opts.APIKey
		cfg.Backend = genai.BackendGeminiAPI
	case strings.TrimSpace(opts.Project) != "":
		cfg.Project = opts.Project
		cfg.Location = opts.Location
		cfg.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("GOOGLE_API_KEY or GOOGLE_CLOUD_PROJECT is required for Gemini")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{model: model, temperature: 0.1, generate: client.Models.GenerateContent}, nil
}

// Complete sends one GenerateContent request.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	resp, err := c.generate(ctx, c.model, buildContents(req), buildConfig(req, c.temperature))
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini generate model=%s: %w", c.model, err)
	}

	out := toResponse(resp)
	telemetry.Info("llm.response", map[string]any{
		"provider":          "gemini",
		"model":             c.model,
		"prompt_tokens":     out.Usage.PromptTokens,
		"completion_tokens": out.Usage.CompletionTokens,
		"tool_calls":        len(out.ToolCalls),
	})
	if out.Empty() {
		return llm.Response{}, llm.ErrEmptyResponse
	}
	return out, nil
}

func buildContents(req llm.Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: map[string]any{llm.InputArgument: call.Input},
				}})
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case llm.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.ToolName,
				Response: map[string]any{"output": m.Content},
			}}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents
}

func buildConfig(req llm.Request, temperature float32) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(temperature)}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						llm.InputArgument: {Type: genai.TypeString, Description: "Input for the tool"},
					},
					Required: []string{llm.InputArgument},
				},
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func toResponse(resp *genai.GenerateContentResponse) llm.Response {
	var out llm.Response
	if resp == nil {
		return out
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	var text strings.Builder
	for i, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: id, Name: fc.Name, Input: argInput(fc.Args)})
		}
	}
	out.Text = strings.TrimSpace(text.String())
	return out
}

func argInput(args map[string]any) string {
	if v, ok := args[llm.InputArgument].(string); ok {
		return v
	}
	for _, v := range args {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

var _ llm.Client = (*Client)(nil)

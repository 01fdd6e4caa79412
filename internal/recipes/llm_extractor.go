package recipes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LLMExtractor asks a generative model to emit a structured recipe via a
// single forced tool call.
type LLMExtractor struct {
	Model llms.Model
}

func NewLLMExtractor(model llms.Model) *LLMExtractor {
	return &LLMExtractor{Model: model}
}

const extractSystemPrompt = "You extract recipes. Read the supplied content and call submit_recipe " +
	"exactly once with the recipe you find. If the content holds several recipes, pick the main one."

func extractTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "submit_recipe",
				Description: "Submit the recipe extracted from the content.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{
							"type": "string",
						},
						"description": map[string]any{
							"type": "string",
						},
						"ingredients": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
						"instructions": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required": []string{"title"},
				},
			},
		},
	}
}

func (e *LLMExtractor) ExtractFromContent(ctx context.Context, content string) (Draft, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(extractSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(content)},
		},
	}
	return e.extract(ctx, messages)
}

func (e *LLMExtractor) ExtractFromImage(ctx context.Context, mimeType string, data []byte) (Draft, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(extractSystemPrompt)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, data),
				llms.TextPart("Extract the recipe shown in this image."),
			},
		},
	}
	return e.extract(ctx, messages)
}

func (e *LLMExtractor) extract(ctx context.Context, messages []llms.MessageContent) (Draft, error) {
	resp, err := e.Model.GenerateContent(ctx, messages, llms.WithTools(extractTools()))
	if err != nil {
		return Draft{}, err
	}
	if len(resp.Choices) == 0 {
		return Draft{}, fmt.Errorf("extraction model returned no choices")
	}

	choice := resp.Choices[0]
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall.Name == "submit_recipe" {
			var d Draft
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &d); err != nil {
				return Draft{}, fmt.Errorf("failed to parse submit_recipe arguments: %v", err)
			}
			if d.Title == "" {
				return Draft{}, fmt.Errorf("extraction produced a recipe with no title")
			}
			return d, nil
		}
	}

	return Draft{}, fmt.Errorf("extraction model did not submit a recipe")
}

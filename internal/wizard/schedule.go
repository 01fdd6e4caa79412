package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ScheduleGenerator drafts a cooking schedule from confirmed event and menu
// data. It runs synchronously on the menu→schedule transition.
type ScheduleGenerator interface {
	Generate(ctx context.Context, event EventInfo, menu MenuPlan) ([]ScheduleTask, error)
}

// LLMScheduleGenerator asks the model to propose a schedule via a single
// forced tool call.
type LLMScheduleGenerator struct {
	Model llms.Model
}

func NewLLMScheduleGenerator(model llms.Model) *LLMScheduleGenerator {
	return &LLMScheduleGenerator{Model: model}
}

const scheduleSystemPrompt = "You plan cooking schedules for home cooks hosting events. " +
	"Given the event and menu, call propose_schedule exactly once with an ordered task list. " +
	"Spread prep across the days before the event, group related work into phases, " +
	"and mark each phase's first task with phase_start."

func scheduleTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "propose_schedule",
				Description: "Submit the ordered cooking schedule.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"tasks": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"description": map[string]any{"type": "string"},
									"days_before": map[string]any{
										"type":        "integer",
										"description": "Days before the event (0 = event day)",
									},
									"time_of_day":       map[string]any{"type": "string"},
									"duration_minutes":  map[string]any{"type": "integer"},
									"phase_start":       map[string]any{"type": "boolean"},
									"phase_description": map[string]any{"type": "string"},
								},
								"required": []string{"description", "days_before"},
							},
						},
					},
					"required": []string{"tasks"},
				},
			},
		},
	}
}

func (g *LLMScheduleGenerator) Generate(ctx context.Context, event EventInfo, menu MenuPlan) ([]ScheduleTask, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s on %s", event.Name, event.StartsAt.Format("Monday, January 2 at 3:04 PM"))
	if event.Location != "" {
		fmt.Fprintf(&b, " at %s", event.Location)
	}
	b.WriteString("\nMenu:")
	for _, id := range menu.SavedRecipeIDs {
		fmt.Fprintf(&b, "\n- saved recipe #%d", id)
	}
	for _, item := range menu.NewItems {
		fmt.Fprintf(&b, "\n- %s", item.Title)
		if len(item.Ingredients) > 0 {
			fmt.Fprintf(&b, " (ingredients: %s)", strings.Join(item.Ingredients, ", "))
		}
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(scheduleSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(b.String())},
		},
	}

	resp, err := g.Model.GenerateContent(ctx, messages, llms.WithTools(scheduleTools()))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("schedule model returned no choices")
	}

	for _, tc := range resp.Choices[0].ToolCalls {
		if tc.FunctionCall.Name == "propose_schedule" {
			var out struct {
				Tasks []ScheduleTask `json:"tasks"`
			}
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &out); err != nil {
				return nil, fmt.Errorf("failed to parse propose_schedule arguments: %v", err)
			}
			if len(out.Tasks) == 0 {
				return nil, fmt.Errorf("schedule model proposed no tasks")
			}
			return out.Tasks, nil
		}
	}

	return nil, fmt.Errorf("schedule model did not propose a schedule")
}

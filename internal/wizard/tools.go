package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/nldate"
)

// StepTool is one entry in a step's fixed toolset: the schema shown to the
// model and the executor binding that runs when the model calls it.
type StepTool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Run         func(ctx context.Context, acc *Accumulator, args string) ActionResult
}

// Searcher performs a recipe web search; satisfied by duckduckgo.Tool.
type Searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

// ToolDeps carries the collaborators step tools close over.
type ToolDeps struct {
	Exec   *Executor
	Search Searcher
	Clock  func() time.Time
}

// ConfirmToolName is the step's designated stop-condition tool.
func ConfirmToolName(step Step) string {
	switch step {
	case StepEventInfo:
		return "confirm_event_info"
	case StepGuestList:
		return "confirm_guest_list"
	case StepMenu:
		return "confirm_menu"
	case StepSchedule:
		return "confirm_schedule"
	}
	return ""
}

// ToolsForStep returns the fixed toolset for a step. The dispatch is
// exhaustive over the closed step set.
func ToolsForStep(step Step, deps ToolDeps) []StepTool {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	confirm := StepTool{
		Name:        ConfirmToolName(step),
		Description: "Call when the step's data is complete and the user should be asked to confirm it.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			return deps.Exec.Apply(ctx, acc, ConfirmStep{Step: step})
		},
	}

	switch step {
	case StepEventInfo:
		return []StepTool{eventInfoTool(deps), confirm}
	case StepGuestList:
		return []StepTool{addGuestTool(deps), removeGuestTool(deps), confirm}
	case StepMenu:
		tools := []StepTool{addMenuItemTool(deps), addSavedRecipeTool(deps), removeMenuItemTool(deps)}
		if deps.Search != nil {
			tools = append(tools, searchRecipesTool(deps))
		}
		return append(tools, confirm)
	case StepSchedule:
		return []StepTool{addScheduleTaskTool(deps), removeScheduleTaskTool(deps), confirm}
	}
	return nil
}

func eventInfoTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "set_event_info",
		Description: "Record the event's name, date/time and optional location, description and whether guests may bring dishes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The event's name",
				},
				"starts_at": map[string]any{
					"type":        "string",
					"description": "The event date and time, RFC3339 or natural language like 'next saturday at 7pm'",
				},
				"location": map[string]any{
					"type": "string",
				},
				"description": map[string]any{
					"type": "string",
				},
				"allow_contributions": map[string]any{
					"type": "boolean",
				},
			},
			"required": []string{"name", "starts_at"},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var in struct {
				Name               string `json:"name"`
				StartsAt           string `json:"starts_at"`
				Location           string `json:"location"`
				Description        string `json:"description"`
				AllowContributions *bool  `json:"allow_contributions"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return failure(nil, "invalid input: %v", err)
			}

			when, err := parseWhen(in.StartsAt, deps.Clock())
			if err != nil {
				return failure(nil, "%v", err)
			}
			info := EventInfo{
				Name:               in.Name,
				StartsAt:           when,
				Location:           in.Location,
				Description:        in.Description,
				AllowContributions: in.AllowContributions,
			}
			return deps.Exec.Apply(ctx, acc, UpdateEventInfo{Info: info})
		},
	}
}

func parseWhen(raw string, ref time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, ok := nldate.Parse(raw, ref); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("could not understand the date %q", raw)
}

func addGuestTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "add_guest",
		Description: "Add one guest to the list. At least one of name, email or phone is required.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":  map[string]any{"type": "string"},
				"email": map[string]any{"type": "string"},
				"phone": map[string]any{"type": "string"},
			},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var g Guest
			if err := json.Unmarshal([]byte(args), &g); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			return deps.Exec.Apply(ctx, acc, AddGuest{Guest: g})
		},
	}
}

func removeGuestTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "remove_guest",
		Description: "Remove the guest at a 1-based position in the list.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"position": map[string]any{
					"type":        "integer",
					"description": "1-based position of the guest to remove",
				},
			},
			"required": []string{"position"},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var in struct {
				Position int `json:"position"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			return deps.Exec.Apply(ctx, acc, RemoveGuest{Index: in.Position - 1})
		},
	}
}

func addMenuItemTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "add_menu_item",
		Description: "Add a newly authored dish to the menu.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
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
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var item MenuItem
			if err := json.Unmarshal([]byte(args), &item); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			return deps.Exec.Apply(ctx, acc, AddMenuItem{Item: item})
		},
	}
}

func addSavedRecipeTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "add_saved_recipe",
		Description: "Put one of the user's saved recipes on the menu by its id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"recipe_id": map[string]any{"type": "integer"},
			},
			"required": []string{"recipe_id"},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var in struct {
				RecipeID int64 `json:"recipe_id"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			return deps.Exec.Apply(ctx, acc, AddSavedRecipe{RecipeID: in.RecipeID})
		},
	}
}

func removeMenuItemTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "remove_menu_item",
		Description: "Remove the newly added menu item at a 1-based position.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"position": map[string]any{
					"type":        "integer",
					"description": "1-based position of the menu item to remove",
				},
			},
			"required": []string{"position"},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var in struct {
				Position int `json:"position"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			return deps.Exec.Apply(ctx, acc, RemoveMenuItem{Index: in.Position - 1})
		},
	}
}

func searchRecipesTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "search_recipes",
		Description: "Search the web for candidate recipes matching a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for, e.g. 'vegetarian lasagna recipe'",
				},
			},
			"required": []string{"query"},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			res, err := deps.Search.Call(ctx, in.Query)
			if err != nil {
				return failure(nil, "search failed: %v", err)
			}
			return success("%s", res)
		},
	}
}

func addScheduleTaskTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "add_schedule_task",
		Description: "Add one cooking task to the schedule.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{"type": "string"},
				"days_before": map[string]any{
					"type":        "integer",
					"description": "How many days before the event the task happens (0 = event day)",
				},
				"time_of_day":      map[string]any{"type": "string"},
				"duration_minutes": map[string]any{"type": "integer"},
				"phase_start": map[string]any{
					"type":        "boolean",
					"description": "Marks the task as the anchor of a reminder-worthy block of work",
				},
				"phase_description": map[string]any{"type": "string"},
			},
			"required": []string{"description", "days_before"},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var t ScheduleTask
			if err := json.Unmarshal([]byte(args), &t); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			return deps.Exec.Apply(ctx, acc, AddScheduleTask{Task: t})
		},
	}
}

func removeScheduleTaskTool(deps ToolDeps) StepTool {
	return StepTool{
		Name:        "remove_schedule_task",
		Description: "Remove the schedule task at a 1-based position.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"position": map[string]any{
					"type":        "integer",
					"description": "1-based position of the task to remove",
				},
			},
			"required": []string{"position"},
		},
		Run: func(ctx context.Context, acc *Accumulator, args string) ActionResult {
			var in struct {
				Position int `json:"position"`
			}
			if err := json.Unmarshal([]byte(args), &in); err != nil {
				return failure(nil, "invalid input: %v", err)
			}
			return deps.Exec.Apply(ctx, acc, RemoveScheduleTask{Index: in.Position - 1})
		},
	}
}

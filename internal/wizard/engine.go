package wizard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/lucas-homer/chefdeparty-sub001/internal/governance"
	"github.com/lucas-homer/chefdeparty-sub001/internal/observability"
	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
)

// Backend tiers for the retry policy.
const (
	TierDefault   = "default"
	TierEscalated = "escalated"
)

// Attempt summarizes one full generation attempt for classification and
// telemetry.
type Attempt struct {
	Tier         string
	Text         string
	ToolCalls    int
	OutputTokens int
	HasUsage     bool
	StopReason   string
	Confirmed    bool
}

// IsSilent reports whether the attempt produced no user-visible output and
// took no action. Text-only or tool-only attempts are never silent; token
// usage only counts when the backend reported it.
func (a Attempt) IsSilent() bool {
	if strings.TrimSpace(a.Text) != "" {
		return false
	}
	if a.ToolCalls > 0 {
		return false
	}
	if a.HasUsage && a.OutputTokens > 0 {
		return false
	}
	return true
}

type verdict int

const (
	verdictAccept verdict = iota
	verdictRetry
	verdictFallback
)

// chooseNext decides what follows the attempts made so far: accept the last
// attempt's output, retry once on the escalated tier, or substitute the
// deterministic fallback message. Pure; independent of transport.
func chooseNext(attempts []Attempt) verdict {
	if len(attempts) == 0 {
		return verdictRetry
	}
	last := attempts[len(attempts)-1]
	if !last.IsSilent() {
		return verdictAccept
	}
	if len(attempts) == 1 {
		return verdictRetry
	}
	return verdictFallback
}

// fallbackMessage is the deterministic reply substituted when both tiers
// complete silently, keyed by the reported stop reason.
func fallbackMessage(stopReason string) string {
	switch stopReason {
	case "content_filter":
		return "I wasn't able to respond to that — could you rephrase it? Some content was filtered on my side."
	case "length", "max_tokens":
		return "My reply got cut off before it could start. Could you try again with a shorter message?"
	default:
		return "Sorry, I lost my train of thought there. Could you say that again?"
	}
}

const visibleReplyInstruction = "Your previous response was empty. You MUST reply with a visible message to the user this time."

// Engine is the tool-calling fallback invoked when the deterministic
// resolvers (and the menu step's extraction shortcuts) decline a turn.
type Engine struct {
	Default   llms.Model
	Escalated llms.Model
	Prompts   *PromptManager
	Policy    governance.PolicyEngine
	Telemetry *observability.Logger
	Budget    int
}

func NewEngine(defaultModel, escalatedModel llms.Model, prompts *PromptManager, policy governance.PolicyEngine, telemetry *observability.Logger, budget int) *Engine {
	if budget <= 0 {
		budget = 8
	}
	return &Engine{
		Default:   defaultModel,
		Escalated: escalatedModel,
		Prompts:   prompts,
		Policy:    policy,
		Telemetry: telemetry,
		Budget:    budget,
	}
}

// Run drives generation for the active step and returns the turn's reply
// text. Mutations land on the accumulator through the step's toolset; the
// retry-then-fallback policy guarantees the reply is never empty.
func (e *Engine) Run(ctx context.Context, acc *Accumulator, step Step, history []store.Turn, userText string, toolset []StepTool) (string, error) {
	systemPrompt, err := e.Prompts.GetStepPrompt(step)
	if err != nil {
		log.Printf("Warning: failed to load prompt for step %s: %v", step, err)
	}

	messages := buildMessages(systemPrompt, history, userText)

	var attempts []Attempt

	first, err := e.runAttempt(ctx, e.Default, TierDefault, messages, acc, step, toolset)
	if err != nil {
		return "", err
	}
	attempts = append(attempts, first.summary)
	e.logAttempt(acc.Session, step, first.summary)

	if chooseNext(attempts) == verdictAccept {
		return first.reply, nil
	}

	// Exactly one retry against the escalated tier, demanding a visible reply.
	retryMessages := append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(visibleReplyInstruction)},
	})
	second, err := e.runAttempt(ctx, e.Escalated, TierEscalated, retryMessages, acc, step, toolset)
	if err != nil {
		return "", err
	}
	attempts = append(attempts, second.summary)
	e.logAttempt(acc.Session, step, second.summary)

	if chooseNext(attempts) == verdictAccept {
		return second.reply, nil
	}

	return fallbackMessage(second.summary.StopReason), nil
}

func buildMessages(systemPrompt string, history []store.Turn, userText string) []llms.MessageContent {
	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		})
	}

	for _, t := range history {
		var role llms.ChatMessageType
		switch t.Role {
		case "ai":
			role = llms.ChatMessageTypeAI
		case "system":
			role = llms.ChatMessageTypeSystem
		default:
			role = llms.ChatMessageTypeHuman
		}
		messages = append(messages, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(t.Content)},
		})
	}

	return append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(userText)},
	})
}

type attemptOutcome struct {
	summary Attempt
	reply   string
}

// runAttempt executes one budgeted generation loop against a single backend
// tier. It stops when the model answers without tool calls, when the step's
// confirm tool runs, or when the budget is exhausted.
func (e *Engine) runAttempt(ctx context.Context, model llms.Model, tier string, messages []llms.MessageContent, acc *Accumulator, step Step, toolset []StepTool) (attemptOutcome, error) {
	llmTools := make([]llms.Tool, 0, len(toolset))
	byName := make(map[string]StepTool, len(toolset))
	for _, t := range toolset {
		byName[t.Name] = t
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	summary := Attempt{Tier: tier}
	var reply string

	for round := 0; round < e.Budget; round++ {
		resp, err := model.GenerateContent(ctx, messages, llms.WithTools(llmTools))
		if err != nil {
			return attemptOutcome{}, err
		}
		if len(resp.Choices) == 0 {
			break
		}

		choice := resp.Choices[0]
		summary.StopReason = choice.StopReason
		if tokens, ok := completionTokens(choice.GenerationInfo); ok {
			summary.HasUsage = true
			summary.OutputTokens += tokens
		}

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
			summary.Text = choice.Content
			reply = choice.Content
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		// No tool calls: this is the final answer.
		if len(choice.ToolCalls) == 0 {
			break
		}

		summary.ToolCalls += len(choice.ToolCalls)
		results, confirmed := e.executeToolCalls(ctx, acc, step, byName, choice.ToolCalls)
		messages = append(messages, results...)

		if confirmed {
			summary.Confirmed = true
			// When the model stayed quiet, the confirm prompt carries the
			// turn; the summary itself renders through the request event.
			if reply == "" {
				reply = confirmPrompt
			}
			break
		}
	}

	return attemptOutcome{summary: summary, reply: reply}, nil
}

// executeToolCalls runs the model's tool calls concurrently while
// serializing their mutations in invocation order, so concurrent appends to
// shared step lists land exactly as the model issued them.
func (e *Engine) executeToolCalls(ctx context.Context, acc *Accumulator, step Step, byName map[string]StepTool, calls []llms.ToolCall) ([]llms.MessageContent, bool) {
	type callResult struct {
		content   string
		confirmed bool
	}

	results := make([]callResult, len(calls))
	ts := newTurnstile()
	var wg sync.WaitGroup

	for i, tc := range calls {
		wg.Add(1)
		go func(seq int, tc llms.ToolCall) {
			defer wg.Done()

			tool, known := byName[tc.FunctionCall.Name]

			allowed := known
			reason := fmt.Sprintf("Error: tool %s not found", tc.FunctionCall.Name)
			if known && e.Policy != nil {
				res, err := e.Policy.Evaluate(ctx, governance.Request{
					Tool:      tc.FunctionCall.Name,
					Arguments: tc.FunctionCall.Arguments,
					Step:      step.String(),
					SessionID: acc.Session.ID,
				})
				if err != nil {
					allowed = false
					reason = fmt.Sprintf("Error: policy evaluation failed: %v", err)
				} else if res.Effect == governance.EffectDeny {
					allowed = false
					reason = fmt.Sprintf("Error: tool call rejected: %s", res.Reason)
					e.Telemetry.LogPolicyCheck(acc.Session.ID, step.String(), tc.FunctionCall.Name, string(res.Effect), res.Reason)
				}
			}

			ts.enter(seq)
			defer ts.leave()

			if !allowed {
				results[seq] = callResult{content: reason}
				return
			}

			log.Printf("[%s] Executing tool %s with args: %s", step, tool.Name, tc.FunctionCall.Arguments)
			e.Telemetry.LogToolCall(acc.Session.ID, step.String(), tool.Name, tc.FunctionCall.Arguments)

			res := tool.Run(ctx, acc, tc.FunctionCall.Arguments)
			content := res.Message
			if !res.OK && content == "" {
				content = "Error: the action failed"
			}
			results[seq] = callResult{
				content:   content,
				confirmed: tool.Name == ConfirmToolName(step) && res.OK,
			}
		}(i, tc)
	}
	wg.Wait()

	messages := make([]llms.MessageContent, 0, len(calls))
	confirmed := false
	for i, tc := range calls {
		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    results[i].content,
				},
			},
		})
		confirmed = confirmed || results[i].confirmed
	}
	return messages, confirmed
}

func completionTokens(info map[string]any) (int, bool) {
	for _, key := range []string{"CompletionTokens", "completion_tokens", "OutputTokens", "output_tokens"} {
		if v, ok := info[key]; ok {
			switch n := v.(type) {
			case int:
				return n, true
			case int64:
				return int(n), true
			case float64:
				return int(n), true
			}
		}
	}
	return 0, false
}

func (e *Engine) logAttempt(s *Session, step Step, a Attempt) {
	e.Telemetry.LogAttempt(s.ID, step.String(), a.Tier, a.IsSilent(), a.ToolCalls, a.StopReason, a.OutputTokens)
}

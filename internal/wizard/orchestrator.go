package wizard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/observability"
	"github.com/lucas-homer/chefdeparty-sub001/internal/recipes"
	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
)

// Responder receives the turn's streamed output: text chunks interleaved
// with structured data events.
type Responder interface {
	Text(s string)
	Data(ev TurnEvent)
}

// IncomingMessage is one user turn: text, optionally with an attached image.
type IncomingMessage struct {
	Text      string
	ImageData []byte
	ImageMIME string
}

// SessionStore is the persistence contract the orchestrator consumes.
// *store.Store satisfies it.
type SessionStore interface {
	GetSession(ctx context.Context, id, ownerID string) (*store.SessionRow, error)
	UpdateSession(ctx context.Context, id, ownerID string, f store.Fields) error
	AppendTurn(ctx context.Context, sessionID, step, role, content string) error
	GetTurns(ctx context.Context, sessionID, step string, limit int) ([]store.Turn, error)
	SaveRecipe(ctx context.Context, r store.Recipe) (int64, error)
}

// PageFetcher retrieves clean article text for a URL; *recipes.Fetcher
// satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Orchestrator drives one conversation turn: confirmation decisions first,
// then the step's deterministic resolver, then (menu only) the direct
// extraction shortcuts, and finally the tool-calling fallback engine. The
// accumulator's final state is written back in a single persistence call.
type Orchestrator struct {
	Store        SessionStore
	Engine       *Engine
	Confirms     *ConfirmStore
	Exec         *Executor
	Fetcher      PageFetcher
	Extractor    recipes.Extractor
	Scheduler    ScheduleGenerator
	Search       Searcher
	Telemetry    *observability.Logger
	Clock        func() time.Time
	HistoryLimit int
}

func NewOrchestrator(st SessionStore, engine *Engine, confirms *ConfirmStore, exec *Executor,
	fetcher PageFetcher, extractor recipes.Extractor, scheduler ScheduleGenerator,
	search Searcher, telemetry *observability.Logger) *Orchestrator {
	return &Orchestrator{
		Store:        st,
		Engine:       engine,
		Confirms:     confirms,
		Exec:         exec,
		Fetcher:      fetcher,
		Extractor:    extractor,
		Scheduler:    scheduler,
		Search:       search,
		Telemetry:    telemetry,
		Clock:        time.Now,
		HistoryLimit: 20,
	}
}

// ProcessTurn handles one user turn against a session. Store failures and an
// unrecognized step abort the turn with an error; everything else is reported
// inline through the responder.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, ownerID, stepName string, msg IncomingMessage, decision *Decision, out Responder) error {
	row, err := o.Store.GetSession(ctx, sessionID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	sess, err := SessionFromRow(row)
	if err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}

	step := sess.CurrentStep
	if stepName != "" {
		step, err = ParseStep(stepName)
		if err != nil {
			return err
		}
	}

	acc := NewAccumulator(sess)
	acc.Session.CurrentStep = step

	observability.SetStatus(observability.PhaseResolving, sessionID)
	defer observability.SetStatus(observability.PhaseIdle, "")

	collector := &collectingResponder{inner: out}

	if decision != nil {
		err = o.handleDecision(ctx, acc, step, decision, collector)
	} else {
		err = o.handleMessage(ctx, acc, step, msg, collector)
	}
	if err != nil {
		return err
	}

	// Atomic write-back of the whole accumulator.
	fields, err := acc.Session.Fields()
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := o.Store.UpdateSession(ctx, sessionID, ownerID, fields); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	// Persist the exchange so the conversation never ends with an empty turn.
	userText := msg.Text
	if decision != nil {
		if decision.Approve {
			userText = "[approved]"
		} else {
			userText = "[revise] " + decision.Feedback
		}
	}
	if userText != "" || len(msg.ImageData) > 0 {
		if userText == "" {
			userText = "[image]"
		}
		if err := o.Store.AppendTurn(ctx, sessionID, step.String(), "human", userText); err != nil {
			return fmt.Errorf("failed to persist user turn: %w", err)
		}
	}
	if err := o.Store.AppendTurn(ctx, sessionID, step.String(), "ai", collector.text.String()); err != nil {
		return fmt.Errorf("failed to persist assistant turn: %w", err)
	}

	return nil
}

// collectingResponder tees streamed text so the assistant turn can be
// persisted verbatim.
type collectingResponder struct {
	inner Responder
	text  strings.Builder
}

func (c *collectingResponder) Text(s string) {
	if s == "" {
		return
	}
	if c.text.Len() > 0 {
		c.text.WriteString("\n")
	}
	c.text.WriteString(s)
	c.inner.Text(s)
}

func (c *collectingResponder) Data(ev TurnEvent) {
	c.inner.Data(ev)
}

// handleMessage routes a plain user message: deterministic resolver, then
// the menu step's extraction shortcuts, then the fallback engine.
func (o *Orchestrator) handleMessage(ctx context.Context, acc *Accumulator, step Step, msg IncomingMessage, out Responder) error {
	outcome := o.resolve(step, msg.Text, acc)
	if outcome.Handled {
		o.Telemetry.LogTurn(acc.Session.ID, step.String(), "resolver", outcome.Intent)
		o.applyOutcome(ctx, acc, outcome, out)
		o.flushEvents(acc, out)
		return nil
	}

	if step == StepMenu {
		handled, err := o.tryExtractionShortcuts(ctx, acc, msg, out)
		if err != nil {
			// External extraction failure falls through to the engine
			// rather than erroring the whole turn.
			log.Printf("extraction shortcut failed, falling through: %v", err)
		} else if handled {
			o.Telemetry.LogTurn(acc.Session.ID, step.String(), "extraction", "")
			o.flushEvents(acc, out)
			return nil
		}
	}

	observability.SetStatus(observability.PhaseGenerating, acc.Session.ID)
	o.Telemetry.LogTurn(acc.Session.ID, step.String(), "engine", "")

	history, err := o.Store.GetTurns(ctx, acc.Session.ID, step.String(), o.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}

	toolset := ToolsForStep(step, ToolDeps{Exec: o.Exec, Search: o.Search, Clock: o.Clock})
	userText := msg.Text
	if userText == "" && len(msg.ImageData) > 0 {
		userText = "[the user sent an image]"
	}
	reply, err := o.Engine.Run(ctx, acc, step, history, userText, toolset)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	out.Text(reply)
	o.flushEvents(acc, out)
	return nil
}

// resolve dispatches to the step's deterministic resolver. The switch is
// exhaustive over the closed step set.
func (o *Orchestrator) resolve(step Step, text string, acc *Accumulator) Outcome {
	switch step {
	case StepEventInfo:
		return ResolveEventInfo(text, acc.Session.EventInfo, o.Clock())
	case StepGuestList:
		return ResolveGuestList(text, acc.Session.GuestList)
	case StepMenu:
		return ResolveClosing(StepMenu, text)
	case StepSchedule:
		return ResolveClosing(StepSchedule, text)
	}
	return unhandled("unknown-step")
}

func (o *Orchestrator) applyOutcome(ctx context.Context, acc *Accumulator, outcome Outcome, out Responder) {
	if outcome.Reply != "" {
		out.Text(outcome.Reply)
	}
	for _, a := range outcome.Actions {
		res := o.Exec.Apply(ctx, acc, a)
		if res.Message != "" {
			out.Text(res.Message)
		}
	}
}

func (o *Orchestrator) flushEvents(acc *Accumulator, out Responder) {
	for _, ev := range acc.Events() {
		out.Data(ev)
	}
}

// tryExtractionShortcuts runs the menu step's direct acquisition paths: an
// attached image, else the first URL in the text. A ledger hit short-circuits
// with no mutation, which is the duplicate-submission guard.
func (o *Orchestrator) tryExtractionShortcuts(ctx context.Context, acc *Accumulator, msg IncomingMessage, out Responder) (bool, error) {
	if acc.Session.MenuPlan == nil {
		acc.Session.MenuPlan = &MenuPlan{}
	}
	menu := acc.Session.MenuPlan

	if len(msg.ImageData) > 0 {
		observability.SetStatus(observability.PhaseExtracting, acc.Session.ID)
		hash := recipes.HashContent(msg.ImageData)
		if menu.HasHash(hash) {
			out.Text("Looks like you've already added that recipe — I'll skip it.")
			o.Telemetry.LogExtraction(acc.Session.ID, "image", "duplicate")
			return true, nil
		}

		draft, err := o.Extractor.ExtractFromImage(ctx, msg.ImageMIME, msg.ImageData)
		if err != nil {
			o.Telemetry.LogExtraction(acc.Session.ID, "image", "failed")
			return false, err
		}
		o.addDraft(ctx, acc, draft, "", hash, out)
		o.Telemetry.LogExtraction(acc.Session.ID, "image", "extracted")
		return true, nil
	}

	url := recipes.FirstURL(msg.Text)
	if url == "" {
		return false, nil
	}

	observability.SetStatus(observability.PhaseExtracting, acc.Session.ID)
	if menu.HasURL(url) {
		out.Text("That recipe link is already on the menu — I'll skip it.")
		o.Telemetry.LogExtraction(acc.Session.ID, "url", "duplicate")
		return true, nil
	}

	content, err := o.Fetcher.Fetch(ctx, url)
	if err != nil {
		o.Telemetry.LogExtraction(acc.Session.ID, "url", "failed")
		return false, err
	}
	draft, err := o.Extractor.ExtractFromContent(ctx, content)
	if err != nil {
		o.Telemetry.LogExtraction(acc.Session.ID, "url", "failed")
		return false, err
	}
	o.addDraft(ctx, acc, draft, url, "", out)
	o.Telemetry.LogExtraction(acc.Session.ID, "url", "extracted")
	return true, nil
}

func (o *Orchestrator) addDraft(ctx context.Context, acc *Accumulator, draft recipes.Draft, url, hash string, out Responder) {
	item := MenuItem{
		Title:        draft.Title,
		Description:  draft.Description,
		Ingredients:  draft.Ingredients,
		Instructions: draft.Instructions,
		SourceURL:    url,
		SourceHash:   hash,
	}
	res := o.Exec.Apply(ctx, acc, AddMenuItem{Item: item})
	out.Text(res.Message)
	if res.OK {
		acc.Emit(TurnEvent{Type: EventRecipeExtracted, Payload: item})
	}
}

// handleDecision consumes a confirmation decision. No resolver or model work
// runs for an approval; revision feedback re-enters the message path for the
// same step.
func (o *Orchestrator) handleDecision(ctx context.Context, acc *Accumulator, step Step, decision *Decision, out Responder) error {
	req, already, ok := o.Confirms.Take(decision.RequestID)
	if !ok {
		out.Text("That confirmation is no longer active — tell me what you'd like to change.")
		o.Telemetry.LogConfirmation(acc.Session.ID, step.String(), decision.RequestID, "unknown")
		return nil
	}
	if already {
		// Replayed decision: never double-advance the watermark.
		out.Text("Already taken care of.")
		o.Telemetry.LogConfirmation(acc.Session.ID, step.String(), decision.RequestID, "replayed")
		return nil
	}

	o.Telemetry.LogTurn(acc.Session.ID, step.String(), "confirmation", "")

	if !decision.Approve {
		o.Telemetry.LogConfirmation(acc.Session.ID, req.Step.String(), req.ID, "revised")
		// The prior request is consumed; fresh collection resumes on the
		// same step with the feedback as a new utterance.
		return o.handleMessage(ctx, acc, req.Step, IncomingMessage{Text: decision.Feedback}, out)
	}

	return o.approve(ctx, acc, req, out)
}

func (o *Orchestrator) approve(ctx context.Context, acc *Accumulator, req *ConfirmationRequest, out Responder) error {
	s := acc.Session

	target := completeIndex
	if !req.Complete {
		target = req.NextStep.Index()
	}
	if target > s.FurthestStep {
		s.FurthestStep = target
	}

	acc.Emit(TurnEvent{Type: EventConfirmationConfirmed, Payload: req})
	o.Telemetry.LogConfirmation(s.ID, req.Step.String(), req.ID, "approved")

	if req.Complete {
		// Terminal approval: the step stays put, the session finishes, and
		// realized data transfers to the permanent records.
		s.Status = StatusCompleted
		o.materialize(ctx, s)
		out.Text("Your party plan is complete — everything is saved. Have a wonderful event! 🎉")
		o.flushEvents(acc, out)
		return nil
	}

	s.CurrentStep = req.NextStep
	out.Text(advanceMessage(req.NextStep))

	// The menu→schedule transition drafts the schedule immediately, so the
	// conversation enters the schedule step already populated.
	if req.Step == StepMenu && req.NextStep == StepSchedule && s.EventInfo != nil && s.MenuPlan != nil {
		o.generateSchedule(ctx, acc, out)
	}

	o.flushEvents(acc, out)
	return nil
}

func (o *Orchestrator) generateSchedule(ctx context.Context, acc *Accumulator, out Responder) {
	if o.Scheduler == nil {
		return
	}
	s := acc.Session
	observability.SetStatus(observability.PhaseGenerating, s.ID)

	tasks, err := o.Scheduler.Generate(ctx, *s.EventInfo, *s.MenuPlan)
	if err != nil {
		log.Printf("schedule generation failed: %v", err)
		out.Text("I couldn't draft a schedule automatically — let's build it together. What should we prep first?")
		return
	}

	res := o.Exec.Apply(ctx, acc, SetSchedule{Tasks: tasks})
	if res.OK {
		acc.Emit(TurnEvent{Type: EventScheduleGenerated, Payload: tasks})
		summary, err := summarizeStep(s, StepSchedule)
		if err == nil {
			out.Text("I've drafted a cooking schedule from your menu:\n" + summary)
			return
		}
	}
	out.Text(res.Message)
}

// materialize transfers newly authored menu items into the owner's permanent
// recipe library once the session completes.
func (o *Orchestrator) materialize(ctx context.Context, s *Session) {
	if s.MenuPlan == nil {
		return
	}
	for _, item := range s.MenuPlan.NewItems {
		_, err := o.Store.SaveRecipe(ctx, store.Recipe{
			OwnerID:      s.OwnerID,
			Title:        item.Title,
			Description:  item.Description,
			Ingredients:  item.Ingredients,
			Instructions: item.Instructions,
			SourceURL:    item.SourceURL,
		})
		if err != nil {
			log.Printf("failed to save recipe %q: %v", item.Title, err)
		}
	}
}

func advanceMessage(next Step) string {
	switch next {
	case StepGuestList:
		return "Event saved! Now, who's coming? Send me names with emails or phone numbers, one per line."
	case StepMenu:
		return "Guest list locked in. Let's plan the menu — paste a recipe link, snap a photo of a recipe, or pick from your saved recipes."
	case StepSchedule:
		return "Menu confirmed!"
	}
	return "On to the next step."
}

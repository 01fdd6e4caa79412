package wizard

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/recipes"
	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
	"github.com/tmc/langchaingo/llms"
)

// memStore is an in-memory SessionStore for orchestrator tests.
type memStore struct {
	rows    map[string]*store.SessionRow
	turns   []store.Turn
	recipes []store.Recipe
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*store.SessionRow)}
}

func (m *memStore) seed(t *testing.T, s *Session) {
	t.Helper()
	f, err := s.Fields()
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	row := &store.SessionRow{ID: s.ID, OwnerID: s.OwnerID}
	applyFields(row, f)
	m.rows[s.ID] = row
}

func applyFields(row *store.SessionRow, f store.Fields) {
	if f.CurrentStep != nil {
		row.CurrentStep = *f.CurrentStep
	}
	if f.FurthestStep != nil {
		row.FurthestStep = *f.FurthestStep
	}
	if f.Status != nil {
		row.Status = *f.Status
	}
	if f.EventInfo != nil {
		row.EventInfo = f.EventInfo
	}
	if f.GuestList != nil {
		row.GuestList = f.GuestList
	}
	if f.MenuPlan != nil {
		row.MenuPlan = f.MenuPlan
	}
	if f.SchedulePlan != nil {
		row.SchedulePlan = f.SchedulePlan
	}
}

func (m *memStore) GetSession(ctx context.Context, id, ownerID string) (*store.SessionRow, error) {
	row, ok := m.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memStore) UpdateSession(ctx context.Context, id, ownerID string, f store.Fields) error {
	row, ok := m.rows[id]
	if !ok || row.OwnerID != ownerID {
		return store.ErrNotFound
	}
	applyFields(row, f)
	return nil
}

func (m *memStore) AppendTurn(ctx context.Context, sessionID, step, role, content string) error {
	m.turns = append(m.turns, store.Turn{
		ID: int64(len(m.turns) + 1), SessionID: sessionID, Step: step, Role: role, Content: content,
	})
	return nil
}

func (m *memStore) GetTurns(ctx context.Context, sessionID, step string, limit int) ([]store.Turn, error) {
	var out []store.Turn
	for _, t := range m.turns {
		if t.SessionID == sessionID && t.Step == step {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) SaveRecipe(ctx context.Context, r store.Recipe) (int64, error) {
	r.ID = int64(len(m.recipes) + 1)
	m.recipes = append(m.recipes, r)
	return r.ID, nil
}

// memResponder collects streamed output.
type memResponder struct {
	texts  []string
	events []TurnEvent
}

func (r *memResponder) Text(s string)     { r.texts = append(r.texts, s) }
func (r *memResponder) Data(ev TurnEvent) { r.events = append(r.events, ev) }

func (r *memResponder) allText() string { return strings.Join(r.texts, "\n") }

func (r *memResponder) eventOfType(typ string) (TurnEvent, bool) {
	for _, ev := range r.events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return TurnEvent{}, false
}

// fakeFetcher / fakeExtractor / fakeScheduler stub the external collaborators.
type fakeFetcher struct {
	content string
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.content, f.err
}

type fakeExtractor struct {
	draft recipes.Draft
	err   error
	calls int
}

func (f *fakeExtractor) ExtractFromContent(ctx context.Context, content string) (recipes.Draft, error) {
	f.calls++
	return f.draft, f.err
}

func (f *fakeExtractor) ExtractFromImage(ctx context.Context, mimeType string, data []byte) (recipes.Draft, error) {
	f.calls++
	return f.draft, f.err
}

type fakeScheduler struct {
	tasks []ScheduleTask
	err   error
	calls int
}

func (f *fakeScheduler) Generate(ctx context.Context, info EventInfo, menu MenuPlan) ([]ScheduleTask, error) {
	f.calls++
	return f.tasks, f.err
}

type orchestratorFixture struct {
	store     *memStore
	orch      *Orchestrator
	fetcher   *fakeFetcher
	extractor *fakeExtractor
	scheduler *fakeScheduler
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	st := newMemStore()
	confirms := NewConfirmStore()
	exec := NewExecutor(confirms, nil)
	exec.Clock = func() time.Time { return refMonday }

	fetcher := &fakeFetcher{content: "page text"}
	extractor := &fakeExtractor{draft: recipes.Draft{Title: "Paella", Ingredients: []string{"rice"}}}
	scheduler := &fakeScheduler{tasks: []ScheduleTask{
		{Description: "shop for ingredients", DaysBefore: 2, PhaseStart: true},
		{Description: "make the sofrito", DaysBefore: 1},
	}}

	// No engine: these tests exercise the deterministic paths only. A nil
	// fallback reaching Run would panic, which is exactly what we want to
	// catch here.
	orch := NewOrchestrator(st, nil, confirms, exec, fetcher, extractor, scheduler, nil, nil)
	orch.Clock = func() time.Time { return refMonday }
	return &orchestratorFixture{store: st, orch: orch, fetcher: fetcher, extractor: extractor, scheduler: scheduler}
}

func (fx *orchestratorFixture) seedMenuSession(t *testing.T) {
	fx.store.seed(t, &Session{
		ID:           "sess-1",
		OwnerID:      "owner-1",
		CurrentStep:  StepMenu,
		FurthestStep: StepMenu.Index(),
		Status:       StatusActive,
		EventInfo:    &EventInfo{Name: "Nest Fest", StartsAt: refMonday.AddDate(0, 0, 5)},
		GuestList:    &GuestList{Guests: []Guest{{Name: "Pete"}}},
	})
}

func TestProcessTurnResolverConfirmsEventInfo(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.store.seed(t, &Session{
		ID: "sess-1", OwnerID: "owner-1",
		CurrentStep: StepEventInfo, FurthestStep: 1, Status: StatusActive,
	})
	out := &memResponder{}

	err := fx.orch.ProcessTurn(context.Background(), "sess-1", "owner-1", "",
		IncomingMessage{Text: `"Nest Fest" tomorrow at 6pm in the backyard`}, nil, out)
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	ev, ok := out.eventOfType(EventConfirmationRequest)
	if !ok {
		t.Fatal("Expected a confirmation-request event")
	}
	req := ev.Payload.(*ConfirmationRequest)
	if !strings.Contains(req.Summary, "Nest Fest") {
		t.Errorf("Expected the summary on the request, got %q", req.Summary)
	}
	// The summary renders once, through the request; the text stream carries
	// only the short prompt.
	if strings.Contains(out.allText(), req.Summary) {
		t.Errorf("The summary must not repeat in the text stream, got %q", out.allText())
	}
	if !strings.Contains(out.allText(), "Confirm to continue") {
		t.Errorf("Expected the confirm prompt in the reply, got %q", out.allText())
	}

	// The extracted payload was written back.
	row := fx.store.rows["sess-1"]
	if !strings.Contains(string(row.EventInfo), "Nest Fest") {
		t.Errorf("Expected the event payload persisted, got %s", row.EventInfo)
	}

	// Both sides of the exchange landed in the turn log.
	if len(fx.store.turns) != 2 || fx.store.turns[0].Role != "human" || fx.store.turns[1].Role != "ai" {
		t.Errorf("Unexpected turn log %+v", fx.store.turns)
	}
}

func TestProcessTurnUnknownSessionFails(t *testing.T) {
	fx := newOrchestratorFixture(t)
	out := &memResponder{}

	err := fx.orch.ProcessTurn(context.Background(), "nope", "owner-1", "", IncomingMessage{Text: "hi"}, nil, out)
	if err == nil {
		t.Fatal("Expected a missing session to abort the turn")
	}
}

func TestProcessTurnURLDedup(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.seedMenuSession(t)
	ctx := context.Background()

	msg := IncomingMessage{Text: "let's make https://example.com/paella"}

	out := &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", msg, nil, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if fx.extractor.calls != 1 {
		t.Fatalf("Expected one extraction, got %d", fx.extractor.calls)
	}
	if _, ok := out.eventOfType(EventRecipeExtracted); !ok {
		t.Fatal("Expected a recipe-extracted event")
	}

	// Same link again: ledger hit, no new fetch or extraction.
	out = &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", msg, nil, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if fx.extractor.calls != 1 || fx.fetcher.calls != 1 {
		t.Errorf("Expected the duplicate to skip fetch/extract, got fetch=%d extract=%d", fx.fetcher.calls, fx.extractor.calls)
	}
	if !strings.Contains(out.allText(), "already") {
		t.Errorf("Expected an already-added reply, got %q", out.allText())
	}

	sess, _ := SessionFromRow(fx.store.rows["sess-1"])
	if len(sess.MenuPlan.NewItems) != 1 {
		t.Errorf("Expected exactly one menu item, got %d", len(sess.MenuPlan.NewItems))
	}
}

func TestProcessTurnImageDedupByHash(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.seedMenuSession(t)
	ctx := context.Background()

	msg := IncomingMessage{ImageData: []byte("jpeg bytes"), ImageMIME: "image/jpeg"}

	out := &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", msg, nil, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if fx.extractor.calls != 1 {
		t.Fatalf("Expected one extraction, got %d", fx.extractor.calls)
	}

	out = &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", msg, nil, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if fx.extractor.calls != 1 {
		t.Errorf("Expected the duplicate image to be skipped, got %d extractions", fx.extractor.calls)
	}
}

func TestProcessTurnApproveAdvancesStep(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.store.seed(t, &Session{
		ID: "sess-1", OwnerID: "owner-1",
		CurrentStep: StepEventInfo, FurthestStep: 1, Status: StatusActive,
	})
	ctx := context.Background()

	out := &memResponder{}
	_ = fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "",
		IncomingMessage{Text: `"Nest Fest" tomorrow at 6pm`}, nil, out)
	ev, ok := out.eventOfType(EventConfirmationRequest)
	if !ok {
		t.Fatal("Expected a confirmation request")
	}
	req := ev.Payload.(*ConfirmationRequest)

	out = &memResponder{}
	decision := &Decision{RequestID: req.ID, Approve: true}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{}, decision, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	row := fx.store.rows["sess-1"]
	if row.CurrentStep != "guest-list" || row.FurthestStep != 2 {
		t.Errorf("Expected advance to guest-list watermark 2, got step=%s watermark=%d", row.CurrentStep, row.FurthestStep)
	}
	if _, ok := out.eventOfType(EventConfirmationConfirmed); !ok {
		t.Error("Expected a confirmation-confirmed event")
	}

	// Replaying the same approval must not advance again.
	out = &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{}, decision, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	row = fx.store.rows["sess-1"]
	if row.CurrentStep != "guest-list" || row.FurthestStep != 2 {
		t.Errorf("A replayed approval must be a no-op, got step=%s watermark=%d", row.CurrentStep, row.FurthestStep)
	}
}

func TestProcessTurnReviseReentersResolver(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.store.seed(t, &Session{
		ID: "sess-1", OwnerID: "owner-1",
		CurrentStep: StepEventInfo, FurthestStep: 1, Status: StatusActive,
	})
	ctx := context.Background()

	out := &memResponder{}
	_ = fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "",
		IncomingMessage{Text: `"Nest Fest" tomorrow at 6pm`}, nil, out)
	ev, _ := out.eventOfType(EventConfirmationRequest)
	req := ev.Payload.(*ConfirmationRequest)

	// Revision feedback is treated as a fresh utterance on the same step,
	// producing a new confirmation request.
	out = &memResponder{}
	decision := &Decision{RequestID: req.ID, Approve: false, Feedback: `actually call it "Nest Fest II" tomorrow at 8pm`}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{}, decision, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	row := fx.store.rows["sess-1"]
	if row.CurrentStep != "event-info" {
		t.Errorf("A revise must not advance the step, got %s", row.CurrentStep)
	}
	ev2, ok := out.eventOfType(EventConfirmationRequest)
	if !ok {
		t.Fatal("Expected a fresh confirmation request after revision")
	}
	req2 := ev2.Payload.(*ConfirmationRequest)
	if req2.ID == req.ID {
		t.Error("Expected a new request id after revision")
	}
	if !strings.Contains(string(row.EventInfo), "Nest Fest II") {
		t.Errorf("Expected the revised payload persisted, got %s", row.EventInfo)
	}

	// The superseded request is dead.
	out = &memResponder{}
	_ = fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{}, &Decision{RequestID: req.ID, Approve: true}, out)
	if fx.store.rows["sess-1"].CurrentStep != "event-info" {
		t.Error("A consumed request must not advance the session")
	}
}

func TestProcessTurnMenuApprovalGeneratesSchedule(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.seedMenuSession(t)
	ctx := context.Background()

	// Add a dish by link, then close the menu.
	out := &memResponder{}
	_ = fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "",
		IncomingMessage{Text: "https://example.com/paella"}, nil, out)

	out = &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{Text: "done"}, nil, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	ev, ok := out.eventOfType(EventConfirmationRequest)
	if !ok {
		t.Fatal("Expected a menu confirmation request")
	}
	req := ev.Payload.(*ConfirmationRequest)

	out = &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{}, &Decision{RequestID: req.ID, Approve: true}, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	if fx.scheduler.calls != 1 {
		t.Fatalf("Expected the schedule to be drafted once, got %d", fx.scheduler.calls)
	}
	if _, ok := out.eventOfType(EventScheduleGenerated); !ok {
		t.Error("Expected a schedule-generated event")
	}

	sess, _ := SessionFromRow(fx.store.rows["sess-1"])
	if sess.CurrentStep != StepSchedule {
		t.Errorf("Expected the schedule step, got %s", sess.CurrentStep)
	}
	if sess.SchedulePlan == nil || len(sess.SchedulePlan.Tasks) != 2 {
		t.Fatalf("Expected the drafted schedule persisted, got %+v", sess.SchedulePlan)
	}
}

func TestProcessTurnFinalApprovalCompletesAndMaterializes(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.store.seed(t, &Session{
		ID: "sess-1", OwnerID: "owner-1",
		CurrentStep: StepSchedule, FurthestStep: 4, Status: StatusActive,
		EventInfo: &EventInfo{Name: "Nest Fest", StartsAt: refMonday.AddDate(0, 0, 5)},
		MenuPlan: &MenuPlan{NewItems: []MenuItem{
			{Title: "Paella", SourceURL: "https://example.com/paella"},
		}},
		SchedulePlan: &SchedulePlan{Tasks: []ScheduleTask{{Description: "shop", DaysBefore: 1}}},
	})
	ctx := context.Background()

	out := &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{Text: "that's all"}, nil, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	ev, ok := out.eventOfType(EventConfirmationRequest)
	if !ok {
		t.Fatal("Expected a schedule confirmation request")
	}
	req := ev.Payload.(*ConfirmationRequest)
	if !req.Complete {
		t.Fatal("Expected the final step's request to be terminal")
	}

	out = &memResponder{}
	if err := fx.orch.ProcessTurn(ctx, "sess-1", "owner-1", "", IncomingMessage{}, &Decision{RequestID: req.ID, Approve: true}, out); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	row := fx.store.rows["sess-1"]
	if row.Status != "completed" {
		t.Errorf("Expected a completed session, got %q", row.Status)
	}
	if row.CurrentStep != "schedule" {
		t.Errorf("The terminal approval must not move the step, got %s", row.CurrentStep)
	}
	if row.FurthestStep != 5 {
		t.Errorf("Expected watermark 5, got %d", row.FurthestStep)
	}

	// The authored dish moved to the permanent library.
	if len(fx.store.recipes) != 1 || fx.store.recipes[0].Title != "Paella" {
		t.Errorf("Expected Paella materialized, got %+v", fx.store.recipes)
	}
	if fx.store.recipes[0].OwnerID != "owner-1" {
		t.Errorf("Expected the recipe owned by owner-1, got %q", fx.store.recipes[0].OwnerID)
	}
}

func TestProcessTurnExtractionFailureFallsThroughToEngine(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.seedMenuSession(t)
	fx.fetcher.err = fmt.Errorf("connection refused")

	def := &fakeModel{responses: []*llms.ContentResponse{
		textResponse("I couldn't open that link — can you paste the recipe text instead?"),
	}}
	engine, _ := newTestEngine(t, def, &fakeModel{})
	fx.orch.Engine = engine

	out := &memResponder{}
	err := fx.orch.ProcessTurn(context.Background(), "sess-1", "owner-1", "",
		IncomingMessage{Text: "https://example.com/paella"}, nil, out)
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	if fx.extractor.calls != 0 {
		t.Errorf("Expected no extraction after a failed fetch, got %d", fx.extractor.calls)
	}
	if len(def.calls) != 1 {
		t.Fatalf("Expected the turn to fall through to the engine, got %d model calls", len(def.calls))
	}
	if !strings.Contains(out.allText(), "paste the recipe text") {
		t.Errorf("Expected the engine reply delivered, got %q", out.allText())
	}

	// The failed acquisition must not poison the ledger.
	sess, _ := SessionFromRow(fx.store.rows["sess-1"])
	if sess.MenuPlan != nil && sess.MenuPlan.HasURL("https://example.com/paella") {
		t.Error("A failed fetch must not record the URL in the ledger")
	}
}

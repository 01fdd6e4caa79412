package wizard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestExecutor() *Executor {
	e := NewExecutor(NewConfirmStore(), nil)
	e.Clock = func() time.Time { return refMonday }
	return e
}

func newTestAccumulator() *Accumulator {
	return NewAccumulator(&Session{
		ID:          "sess-1",
		OwnerID:     "owner-1",
		CurrentStep: StepEventInfo,
	})
}

func TestApplyAddGuestRejectsEmpty(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()

	res := exec.Apply(context.Background(), acc, AddGuest{})
	if res.OK {
		t.Fatal("Expected an empty guest to be rejected")
	}
	if acc.Session.GuestList != nil && len(acc.Session.GuestList.Guests) != 0 {
		t.Error("A rejected guest must not be appended")
	}
}

func TestApplyAddGuestRecoversNameFromEmailField(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()

	res := exec.Apply(context.Background(), acc, AddGuest{Guest: Guest{Email: "Pete Sampras"}})
	if !res.OK {
		t.Fatalf("Expected success, got %q", res.Message)
	}
	g := acc.Session.GuestList.Guests[0]
	if g.Name != "Pete Sampras" || g.Email != "" {
		t.Errorf("Expected the non-email value moved to the name, got %+v", g)
	}
}

func TestApplyRemoveGuestOutOfRange(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()
	exec.Apply(context.Background(), acc, AddGuest{Guest: Guest{Name: "Pete"}})

	res := exec.Apply(context.Background(), acc, RemoveGuest{Index: 5})
	if res.OK || !errors.Is(res.Err, ErrOutOfRange) {
		t.Fatalf("Expected ErrOutOfRange, got ok=%v err=%v", res.OK, res.Err)
	}
	if len(acc.Session.GuestList.Guests) != 1 {
		t.Error("An out-of-range removal must not mutate the list")
	}
}

func TestApplyMenuItemLedger(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()
	ctx := context.Background()

	item := MenuItem{Title: "Paella", SourceURL: "https://example.com/paella", SourceHash: "abc123"}
	res := exec.Apply(ctx, acc, AddMenuItem{Item: item})
	if !res.OK {
		t.Fatalf("Expected success, got %q", res.Message)
	}

	menu := acc.Session.MenuPlan
	if !menu.HasURL(item.SourceURL) || !menu.HasHash(item.SourceHash) {
		t.Fatal("Expected the source to be recorded in the dedup ledgers")
	}

	// Removing the item frees its source for resubmission.
	res = exec.Apply(ctx, acc, RemoveMenuItem{Index: 0})
	if !res.OK {
		t.Fatalf("Expected removal to succeed, got %q", res.Message)
	}
	if menu.HasURL(item.SourceURL) || menu.HasHash(item.SourceHash) {
		t.Error("Expected the ledgers to be purged on removal")
	}
	if len(menu.NewItems) != 0 {
		t.Errorf("Expected an empty menu, got %d items", len(menu.NewItems))
	}
}

func TestApplyAddMenuItemRequiresTitle(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()

	res := exec.Apply(context.Background(), acc, AddMenuItem{Item: MenuItem{Description: "tasty"}})
	if res.OK {
		t.Fatal("Expected a title-less menu item to be rejected")
	}
}

func TestApplySetScheduleReplaces(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()
	ctx := context.Background()

	exec.Apply(ctx, acc, AddScheduleTask{Task: ScheduleTask{Description: "old task"}})
	exec.Apply(ctx, acc, SetSchedule{Tasks: []ScheduleTask{
		{Description: "shop for ingredients", DaysBefore: 2},
		{Description: "bake the cake", DaysBefore: 1},
	}})

	tasks := acc.Session.SchedulePlan.Tasks
	if len(tasks) != 2 || tasks[0].Description != "shop for ingredients" {
		t.Errorf("Expected the schedule to be replaced, got %+v", tasks)
	}
}

func TestApplyConfirmStepIncomplete(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()

	// No event info collected yet: confirmation is refused inline.
	res := exec.Apply(context.Background(), acc, ConfirmStep{Step: StepEventInfo})
	if res.OK {
		t.Fatal("Expected confirmation of an incomplete step to fail")
	}
	if exec.Confirms.Live("sess-1") != nil {
		t.Error("A refused confirmation must not leave a live request")
	}
}

func TestApplyConfirmStepCreatesRequest(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()
	ctx := context.Background()

	exec.Apply(ctx, acc, UpdateEventInfo{Info: EventInfo{Name: "Nest Fest", StartsAt: refMonday}})
	res := exec.Apply(ctx, acc, ConfirmStep{Step: StepEventInfo})
	if !res.OK {
		t.Fatalf("Expected confirmation to succeed, got %q", res.Message)
	}

	req := exec.Confirms.Live("sess-1")
	if req == nil {
		t.Fatal("Expected a live confirmation request")
	}
	if req.Step != StepEventInfo || req.NextStep != StepGuestList || req.Complete {
		t.Errorf("Unexpected request %+v", req)
	}

	// The request also surfaces as a data event.
	events := acc.Events()
	if len(events) == 0 || events[len(events)-1].Type != EventConfirmationRequest {
		t.Error("Expected a confirmation-request event")
	}
}

func TestApplyConfirmFinalStepIsTerminal(t *testing.T) {
	exec := newTestExecutor()
	acc := newTestAccumulator()
	ctx := context.Background()

	exec.Apply(ctx, acc, AddScheduleTask{Task: ScheduleTask{Description: "set the table"}})
	res := exec.Apply(ctx, acc, ConfirmStep{Step: StepSchedule})
	if !res.OK {
		t.Fatalf("Expected confirmation to succeed, got %q", res.Message)
	}

	req := exec.Confirms.Live("sess-1")
	if req == nil || !req.Complete {
		t.Fatalf("Expected a terminal request, got %+v", req)
	}
}

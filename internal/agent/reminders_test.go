package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
	"github.com/lucas-homer/chefdeparty-sub001/internal/wizard"
)

type fakeLister struct {
	rows []store.SessionRow
	err  error
}

func (f *fakeLister) ListSessionsByStatus(ctx context.Context, status string) ([]store.SessionRow, error) {
	return f.rows, f.err
}

type fakeMessenger struct {
	sent []string
	err  error
}

func (f *fakeMessenger) Send(chatID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatID+": "+text)
	return nil
}

func sessionRow(t *testing.T, s *wizard.Session) store.SessionRow {
	t.Helper()
	f, err := s.Fields()
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	row := store.SessionRow{ID: s.ID, OwnerID: s.OwnerID}
	if f.CurrentStep != nil {
		row.CurrentStep = *f.CurrentStep
	}
	if f.Status != nil {
		row.Status = *f.Status
	}
	row.EventInfo = f.EventInfo
	row.GuestList = f.GuestList
	row.MenuPlan = f.MenuPlan
	row.SchedulePlan = f.SchedulePlan
	return row
}

// eventDay is three days out from "now" in these tests.
var remNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func completedPlan(t *testing.T) store.SessionRow {
	t.Helper()
	return sessionRow(t, &wizard.Session{
		ID: "sess-1", OwnerID: "chat-42",
		CurrentStep: wizard.StepSchedule, Status: wizard.StatusCompleted,
		EventInfo: &wizard.EventInfo{Name: "Nest Fest", StartsAt: remNow.AddDate(0, 0, 3).Add(9 * time.Hour)},
		SchedulePlan: &wizard.SchedulePlan{Tasks: []wizard.ScheduleTask{
			{Description: "shop for ingredients", DaysBefore: 3, TimeOfDay: "morning", DurationMinutes: 60},
			{Description: "make the sofrito", DaysBefore: 1},
		}},
	})
}

func newTestReminders(lister *fakeLister, gw *fakeMessenger) *Reminders {
	r := NewReminders(lister, gw, nil)
	r.Clock = func() time.Time { return remNow }
	return r
}

func TestPollSendsDueReminderOnce(t *testing.T) {
	gw := &fakeMessenger{}
	r := newTestReminders(&fakeLister{rows: []store.SessionRow{completedPlan(t)}}, gw)

	r.poll(context.Background())
	if len(gw.sent) != 1 {
		t.Fatalf("Expected 1 reminder, got %d", len(gw.sent))
	}
	msg := gw.sent[0]
	if !strings.HasPrefix(msg, "chat-42: ") {
		t.Errorf("Expected delivery to the owner's chat, got %q", msg)
	}
	if !strings.Contains(msg, "shop for ingredients") || !strings.Contains(msg, "Nest Fest") {
		t.Errorf("Expected the task and event in the text, got %q", msg)
	}
	if strings.Contains(msg, "make the sofrito") {
		t.Errorf("The day-before task is not due yet, got %q", msg)
	}

	// Same day, later tick: already delivered.
	r.poll(context.Background())
	if len(gw.sent) != 1 {
		t.Errorf("Expected the reminder deduplicated within the day, got %d", len(gw.sent))
	}
}

func TestPollRetriesAfterSendFailure(t *testing.T) {
	gw := &fakeMessenger{err: fmt.Errorf("telegram unreachable")}
	r := newTestReminders(&fakeLister{rows: []store.SessionRow{completedPlan(t)}}, gw)

	r.poll(context.Background())
	if len(gw.sent) != 0 {
		t.Fatalf("Expected no delivery while the gateway is down, got %d", len(gw.sent))
	}

	gw.err = nil
	r.poll(context.Background())
	if len(gw.sent) != 1 {
		t.Errorf("Expected a retry once the gateway recovers, got %d", len(gw.sent))
	}
}

func TestPollSkipsPastEvents(t *testing.T) {
	row := sessionRow(t, &wizard.Session{
		ID: "sess-old", OwnerID: "chat-42",
		CurrentStep: wizard.StepSchedule, Status: wizard.StatusCompleted,
		EventInfo: &wizard.EventInfo{Name: "Last Year's Bash", StartsAt: remNow.AddDate(0, 0, -10)},
		SchedulePlan: &wizard.SchedulePlan{Tasks: []wizard.ScheduleTask{
			{Description: "anything", DaysBefore: 0},
		}},
	})
	gw := &fakeMessenger{}
	r := newTestReminders(&fakeLister{rows: []store.SessionRow{row}}, gw)

	r.poll(context.Background())
	if len(gw.sent) != 0 {
		t.Errorf("Expected past events skipped, got %d reminders", len(gw.sent))
	}
}

func TestPollSkipsSessionsWithoutSchedule(t *testing.T) {
	row := sessionRow(t, &wizard.Session{
		ID: "sess-bare", OwnerID: "chat-42",
		CurrentStep: wizard.StepSchedule, Status: wizard.StatusCompleted,
		EventInfo:   &wizard.EventInfo{Name: "Nest Fest", StartsAt: remNow.AddDate(0, 0, 1)},
	})
	gw := &fakeMessenger{}
	r := newTestReminders(&fakeLister{rows: []store.SessionRow{row}}, gw)

	r.poll(context.Background())
	if len(gw.sent) != 0 {
		t.Errorf("Expected sessions without a schedule skipped, got %d reminders", len(gw.sent))
	}
}

func TestReminderText(t *testing.T) {
	task := wizard.ScheduleTask{
		Description: "brine the chicken", DaysBefore: 1,
		TimeOfDay: "evening", DurationMinutes: 20,
		PhaseStart: true, PhaseDescription: "Day-before prep",
	}
	text := reminderText("Nest Fest", task)
	for _, want := range []string{"Prep reminder", "Nest Fest", "Day-before prep", "brine the chicken", "around evening", "about 20 minutes"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in the reminder, got %q", want, text)
		}
	}

	bare := reminderText("", wizard.ScheduleTask{Description: "set the table"})
	if strings.Contains(bare, " for ") || strings.Contains(bare, "around") || strings.Contains(bare, "minutes") {
		t.Errorf("Expected the optional parts omitted, got %q", bare)
	}
}

package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/observability"
	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
	"github.com/lucas-homer/chefdeparty-sub001/internal/wizard"
)

// Messenger is the outbound half of a gateway; reminders go through it.
type Messenger interface {
	Send(chatID string, text string) error
}

// SessionLister yields completed sessions to scan for due prep work.
// *store.Store satisfies it.
type SessionLister interface {
	ListSessionsByStatus(ctx context.Context, status string) ([]store.SessionRow, error)
}

// Reminders polls completed party plans and nudges the owner when a cooking
// phase comes due. Each phase fires once per day it is due; delivery is
// best-effort.
type Reminders struct {
	Store     SessionLister
	Gateway   Messenger
	Telemetry *observability.Logger
	Interval  time.Duration
	Clock     func() time.Time

	mu   sync.Mutex
	sent map[string]bool // session|task|day already delivered
}

func NewReminders(st SessionLister, gw Messenger, telemetry *observability.Logger) *Reminders {
	return &Reminders{
		Store:     st,
		Gateway:   gw,
		Telemetry: telemetry,
		Interval:  time.Minute,
		Clock:     time.Now,
		sent:      make(map[string]bool),
	}
}

func (r *Reminders) Start(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	log.Println("Reminder poller started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Reminders) poll(ctx context.Context) {
	rows, err := r.Store.ListSessionsByStatus(ctx, string(wizard.StatusCompleted))
	if err != nil {
		log.Printf("Error polling completed sessions: %v", err)
		return
	}

	now := r.Clock()
	for i := range rows {
		sess, err := wizard.SessionFromRow(&rows[i])
		if err != nil {
			log.Printf("Error decoding session %s: %v", rows[i].ID, err)
			continue
		}
		r.remindSession(sess, now)
	}
}

func (r *Reminders) remindSession(sess *wizard.Session, now time.Time) {
	if sess.EventInfo == nil || sess.SchedulePlan == nil {
		return
	}
	eventDay := truncateDay(sess.EventInfo.StartsAt)
	if truncateDay(now).After(eventDay) {
		return // the party already happened
	}

	for i, task := range sess.SchedulePlan.Tasks {
		due := eventDay.AddDate(0, 0, -task.DaysBefore)
		if !truncateDay(now).Equal(due) {
			continue
		}

		key := fmt.Sprintf("%s|%d|%s", sess.ID, i, due.Format("2006-01-02"))
		r.mu.Lock()
		delivered := r.sent[key]
		if !delivered {
			r.sent[key] = true
		}
		r.mu.Unlock()
		if delivered {
			continue
		}

		text := reminderText(sess.EventInfo.Name, task)
		if err := r.Gateway.Send(sess.OwnerID, text); err != nil {
			log.Printf("Error sending reminder for session %s: %v", sess.ID, err)
			// Allow a retry on the next tick.
			r.mu.Lock()
			delete(r.sent, key)
			r.mu.Unlock()
			continue
		}
		r.Telemetry.LogReminder(sess.ID, task.Description)
	}
}

func reminderText(eventName string, task wizard.ScheduleTask) string {
	var b strings.Builder
	b.WriteString("⏰ *Prep reminder*")
	if eventName != "" {
		b.WriteString(" for " + eventName)
	}
	b.WriteString("\n\n")
	if task.PhaseStart && task.PhaseDescription != "" {
		b.WriteString(task.PhaseDescription + "\n")
	}
	b.WriteString("• " + task.Description)
	if task.TimeOfDay != "" {
		b.WriteString(" (around " + task.TimeOfDay + ")")
	}
	if task.DurationMinutes > 0 {
		b.WriteString(fmt.Sprintf(" — plan on about %d minutes", task.DurationMinutes))
	}
	return b.String()
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

package wizard

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConfirmationRequest is the ephemeral human-in-the-loop handshake created
// when a step's data is deemed complete. At most one request is live per
// session; it is consumed exactly once by a user decision.
type ConfirmationRequest struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Step      Step            `json:"-"`
	StepName  string          `json:"step"`
	NextStep  Step            `json:"-"`
	Complete  bool            `json:"complete"` // terminal: no next step, session finishes
	Summary   string          `json:"summary"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decision is the user's answer to a confirmation request.
type Decision struct {
	RequestID string
	Approve   bool
	Feedback  string // populated on revise
}

// ConfirmStore holds live confirmation requests keyed by session, replacing
// the original design's scan of recent chat messages. It also remembers
// consumed request ids so a replayed approval cannot double-advance.
type ConfirmStore struct {
	mu       sync.Mutex
	live     map[string]*ConfirmationRequest // by session id
	consumed map[string]bool                 // by request id
}

func NewConfirmStore() *ConfirmStore {
	return &ConfirmStore{
		live:     make(map[string]*ConfirmationRequest),
		consumed: make(map[string]bool),
	}
}

// Create registers a fresh request for the session, replacing any live one.
func (c *ConfirmStore) Create(s *Session, step Step, summary string, now time.Time) (*ConfirmationRequest, error) {
	snapshot, err := snapshotStep(s, step)
	if err != nil {
		return nil, err
	}

	next, ok := step.Next()
	req := &ConfirmationRequest{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Step:      step,
		StepName:  step.String(),
		Complete:  !ok,
		Summary:   summary,
		Snapshot:  snapshot,
		CreatedAt: now,
	}
	if ok {
		req.NextStep = next
	}

	c.mu.Lock()
	c.live[s.ID] = req
	c.mu.Unlock()
	return req, nil
}

// Live returns the session's live request, or nil.
func (c *ConfirmStore) Live(sessionID string) *ConfirmationRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live[sessionID]
}

// Take consumes the request with the given id. already reports a replayed
// decision for a request that was consumed before; ok is false when the id
// is unknown.
func (c *ConfirmStore) Take(requestID string) (req *ConfirmationRequest, already, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consumed[requestID] {
		return nil, true, true
	}
	for sessionID, live := range c.live {
		if live.ID == requestID {
			delete(c.live, sessionID)
			c.consumed[requestID] = true
			return live, false, true
		}
	}
	return nil, false, false
}

// Invalidate drops the session's live request without consuming it, used
// when a revise replaces it with fresh collection.
func (c *ConfirmStore) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, sessionID)
}

func snapshotStep(s *Session, step Step) (json.RawMessage, error) {
	switch step {
	case StepEventInfo:
		return json.Marshal(s.EventInfo)
	case StepGuestList:
		return json.Marshal(s.GuestList)
	case StepMenu:
		return json.Marshal(s.MenuPlan)
	case StepSchedule:
		return json.Marshal(s.SchedulePlan)
	}
	return nil, fmt.Errorf("unrecognized step %v", step)
}

// summarizeStep renders the pending payload as the human-readable body of a
// confirmation request.
func summarizeStep(s *Session, step Step) (string, error) {
	switch step {
	case StepEventInfo:
		info := s.EventInfo
		if info == nil || info.Name == "" || info.StartsAt.IsZero() {
			return "", fmt.Errorf("the event needs a name and a date before it can be confirmed")
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Here's your event so far:\n• %s\n• %s", info.Name, info.StartsAt.Format("Monday, January 2 at 3:04 PM"))
		if info.Location != "" {
			fmt.Fprintf(&b, "\n• at %s", info.Location)
		}
		if info.AllowContributions != nil {
			if *info.AllowContributions {
				b.WriteString("\n• guests may bring dishes")
			} else {
				b.WriteString("\n• no contributions needed")
			}
		}
		b.WriteString("\nShall we move on to the guest list?")
		return b.String(), nil

	case StepGuestList:
		if s.GuestList == nil || len(s.GuestList.Guests) == 0 {
			return "", fmt.Errorf("the guest list is empty; add at least one guest first")
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Your guest list (%d):", len(s.GuestList.Guests))
		for i, g := range s.GuestList.Guests {
			fmt.Fprintf(&b, "\n%d. %s", i+1, guestLine(g))
		}
		b.WriteString("\nReady to plan the menu?")
		return b.String(), nil

	case StepMenu:
		m := s.MenuPlan
		if m == nil || (len(m.NewItems) == 0 && len(m.SavedRecipeIDs) == 0) {
			return "", fmt.Errorf("the menu is empty; add at least one dish first")
		}
		var b strings.Builder
		b.WriteString("Here's the menu:")
		n := 1
		for _, id := range m.SavedRecipeIDs {
			fmt.Fprintf(&b, "\n%d. saved recipe #%d", n, id)
			n++
		}
		for _, item := range m.NewItems {
			fmt.Fprintf(&b, "\n%d. %s", n, item.Title)
			n++
		}
		b.WriteString("\nShall I draft the cooking schedule?")
		return b.String(), nil

	case StepSchedule:
		if s.SchedulePlan == nil || len(s.SchedulePlan.Tasks) == 0 {
			return "", fmt.Errorf("the schedule is empty; add at least one task first")
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Your cooking schedule (%d tasks):", len(s.SchedulePlan.Tasks))
		for i, t := range s.SchedulePlan.Tasks {
			fmt.Fprintf(&b, "\n%d. %s", i+1, taskLine(t))
		}
		b.WriteString("\nDoes this look right? Approving will finish your party plan.")
		return b.String(), nil
	}
	return "", fmt.Errorf("unrecognized step %v", step)
}

func guestLine(g Guest) string {
	parts := []string{}
	if g.Name != "" {
		parts = append(parts, g.Name)
	}
	if g.Email != "" {
		parts = append(parts, g.Email)
	}
	if g.Phone != "" {
		parts = append(parts, g.Phone)
	}
	return strings.Join(parts, " · ")
}

func taskLine(t ScheduleTask) string {
	when := "day of the event"
	if t.DaysBefore == 1 {
		when = "1 day before"
	} else if t.DaysBefore > 1 {
		when = fmt.Sprintf("%d days before", t.DaysBefore)
	}
	if t.TimeOfDay != "" {
		when += " at " + t.TimeOfDay
	}
	line := fmt.Sprintf("%s (%s)", t.Description, when)
	if t.PhaseStart {
		line += " [phase start]"
	}
	return line
}

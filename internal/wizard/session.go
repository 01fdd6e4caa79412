package wizard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// EventInfo is the payload collected during the event-info step.
type EventInfo struct {
	Name               string    `json:"name"`
	StartsAt           time.Time `json:"starts_at"`
	Location           string    `json:"location,omitempty"`
	Description        string    `json:"description,omitempty"`
	AllowContributions *bool     `json:"allow_contributions,omitempty"`
}

// Guest is one guest-list entry. At least one of name/email/phone must be set.
type Guest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (g Guest) Empty() bool {
	return g.Name == "" && g.Email == "" && g.Phone == ""
}

// Label is the guest's display handle: name, else email, else phone.
func (g Guest) Label() string {
	if g.Name != "" {
		return g.Name
	}
	if g.Email != "" {
		return g.Email
	}
	return g.Phone
}

type GuestList struct {
	Guests []Guest `json:"guests"`
}

// MenuItem is a newly authored menu entry, possibly extracted from an
// external source.
type MenuItem struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	SourceHash   string   `json:"source_hash,omitempty"`
}

// MenuPlan holds references to the owner's saved recipes, newly authored
// items, and the duplicate-submission ledgers for processed URLs and image
// content hashes.
type MenuPlan struct {
	SavedRecipeIDs []int64    `json:"saved_recipe_ids,omitempty"`
	NewItems       []MenuItem `json:"new_items,omitempty"`
	SeenURLs       []string   `json:"seen_urls,omitempty"`
	SeenHashes     []string   `json:"seen_hashes,omitempty"`
}

// HasURL reports whether a source URL is already in the ledger.
func (m *MenuPlan) HasURL(url string) bool {
	for _, u := range m.SeenURLs {
		if u == url {
			return true
		}
	}
	return false
}

// HasHash reports whether an image content hash is already in the ledger.
func (m *MenuPlan) HasHash(hash string) bool {
	for _, h := range m.SeenHashes {
		if h == hash {
			return true
		}
	}
	return false
}

// PurgeLedger removes an item's source URL and hash from the ledgers so the
// source can be resubmitted after the item is removed.
func (m *MenuPlan) PurgeLedger(item MenuItem) {
	if item.SourceURL != "" {
		m.SeenURLs = removeString(m.SeenURLs, item.SourceURL)
	}
	if item.SourceHash != "" {
		m.SeenHashes = removeString(m.SeenHashes, item.SourceHash)
	}
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// ScheduleTask is one cooking-plan task, offset in days before the event.
type ScheduleTask struct {
	Description      string `json:"description"`
	DaysBefore       int    `json:"days_before"`
	TimeOfDay        string `json:"time_of_day,omitempty"`
	DurationMinutes  int    `json:"duration_minutes,omitempty"`
	PhaseStart       bool   `json:"phase_start,omitempty"`
	PhaseDescription string `json:"phase_description,omitempty"`
}

type SchedulePlan struct {
	Tasks []ScheduleTask `json:"tasks"`
}

// Session is the in-memory working copy of a wizard session. The orchestrator
// is its sole writer while the session is active.
type Session struct {
	ID           string
	OwnerID      string
	CurrentStep  Step
	FurthestStep int // watermark: highest step index ever reached, never decreases
	Status       Status
	EventInfo    *EventInfo
	GuestList    *GuestList
	MenuPlan     *MenuPlan
	SchedulePlan *SchedulePlan
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionFromRow decodes a persisted row into a working session.
func SessionFromRow(row *store.SessionRow) (*Session, error) {
	step, err := ParseStep(row.CurrentStep)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		CurrentStep:  step,
		FurthestStep: row.FurthestStep,
		Status:       Status(row.Status),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}

	if err := decodePayload(row.EventInfo, &s.EventInfo); err != nil {
		return nil, fmt.Errorf("event info payload: %v", err)
	}
	if err := decodePayload(row.GuestList, &s.GuestList); err != nil {
		return nil, fmt.Errorf("guest list payload: %v", err)
	}
	if err := decodePayload(row.MenuPlan, &s.MenuPlan); err != nil {
		return nil, fmt.Errorf("menu plan payload: %v", err)
	}
	if err := decodePayload(row.SchedulePlan, &s.SchedulePlan); err != nil {
		return nil, fmt.Errorf("schedule plan payload: %v", err)
	}
	return s, nil
}

func decodePayload[T any](raw []byte, dst **T) error {
	if len(raw) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

// Fields encodes the full session state as a partial-update write. The whole
// accumulator is written back in one call at the end of a turn.
func (s *Session) Fields() (store.Fields, error) {
	step := s.CurrentStep.String()
	status := string(s.Status)
	f := store.Fields{
		CurrentStep:  &step,
		FurthestStep: &s.FurthestStep,
		Status:       &status,
	}

	var err error
	if f.EventInfo, err = encodePayload(s.EventInfo); err != nil {
		return f, err
	}
	if f.GuestList, err = encodePayload(s.GuestList); err != nil {
		return f, err
	}
	if f.MenuPlan, err = encodePayload(s.MenuPlan); err != nil {
		return f, err
	}
	if f.SchedulePlan, err = encodePayload(s.SchedulePlan); err != nil {
		return f, err
	}
	return f, nil
}

func encodePayload[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Clone returns a deep copy used as the turn accumulator, so a failed turn
// never leaves a half-mutated session behind.
func (s *Session) Clone() *Session {
	c := *s
	if s.EventInfo != nil {
		ei := *s.EventInfo
		if s.EventInfo.AllowContributions != nil {
			b := *s.EventInfo.AllowContributions
			ei.AllowContributions = &b
		}
		c.EventInfo = &ei
	}
	if s.GuestList != nil {
		gl := GuestList{Guests: append([]Guest(nil), s.GuestList.Guests...)}
		c.GuestList = &gl
	}
	if s.MenuPlan != nil {
		mp := MenuPlan{
			SavedRecipeIDs: append([]int64(nil), s.MenuPlan.SavedRecipeIDs...),
			NewItems:       append([]MenuItem(nil), s.MenuPlan.NewItems...),
			SeenURLs:       append([]string(nil), s.MenuPlan.SeenURLs...),
			SeenHashes:     append([]string(nil), s.MenuPlan.SeenHashes...),
		}
		c.MenuPlan = &mp
	}
	if s.SchedulePlan != nil {
		sp := SchedulePlan{Tasks: append([]ScheduleTask(nil), s.SchedulePlan.Tasks...)}
		c.SchedulePlan = &sp
	}
	return &c
}

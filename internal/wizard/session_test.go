package wizard

import (
	"reflect"
	"testing"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
)

func TestSessionPayloadRoundTrip(t *testing.T) {
	// Sub-second precision must survive the encode/decode cycle.
	startsAt := time.Date(2026, 3, 14, 18, 30, 0, int(250*time.Millisecond), time.UTC)
	yes := true
	orig := &Session{
		ID: "sess-1", OwnerID: "owner-1",
		CurrentStep: StepMenu, FurthestStep: 3, Status: StatusActive,
		EventInfo: &EventInfo{
			Name: "Nest Fest", StartsAt: startsAt,
			Location: "the backyard", Description: "housewarming",
			AllowContributions: &yes,
		},
		GuestList: &GuestList{Guests: []Guest{
			{Name: "Pete", Email: "pete@example.com"},
			{Phone: "+1 (555) 123-4567"},
		}},
		MenuPlan: &MenuPlan{
			SavedRecipeIDs: []int64{7},
			NewItems: []MenuItem{{
				Title:       "Paella",
				Ingredients: []string{"rice", "saffron"},
				SourceURL:   "https://example.com/paella",
			}},
			SeenURLs:   []string{"https://example.com/paella"},
			SeenHashes: []string{"abc123"},
		},
		SchedulePlan: &SchedulePlan{Tasks: []ScheduleTask{{
			Description: "shop for ingredients", DaysBefore: 2,
			TimeOfDay: "morning", DurationMinutes: 45,
			PhaseStart: true, PhaseDescription: "Two days out",
		}}},
	}

	f, err := orig.Fields()
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	row := &store.SessionRow{ID: orig.ID, OwnerID: orig.OwnerID}
	applyFields(row, f)

	got, err := SessionFromRow(row)
	if err != nil {
		t.Fatalf("SessionFromRow failed: %v", err)
	}

	if got.CurrentStep != StepMenu || got.FurthestStep != 3 || got.Status != StatusActive {
		t.Errorf("Unexpected session header %v/%d/%s", got.CurrentStep, got.FurthestStep, got.Status)
	}

	if got.EventInfo == nil {
		t.Fatal("Expected the event payload back")
	}
	if !got.EventInfo.StartsAt.Equal(startsAt) {
		t.Errorf("Expected the date back to the millisecond: want %v, got %v", startsAt, got.EventInfo.StartsAt)
	}
	if got.EventInfo.Name != orig.EventInfo.Name ||
		got.EventInfo.Location != orig.EventInfo.Location ||
		got.EventInfo.Description != orig.EventInfo.Description {
		t.Errorf("Event fields changed in flight: %+v", got.EventInfo)
	}
	if got.EventInfo.AllowContributions == nil || !*got.EventInfo.AllowContributions {
		t.Errorf("Expected the contributions flag preserved, got %v", got.EventInfo.AllowContributions)
	}

	if !reflect.DeepEqual(got.GuestList, orig.GuestList) {
		t.Errorf("Guest list changed in flight: %+v", got.GuestList)
	}
	if !reflect.DeepEqual(got.MenuPlan, orig.MenuPlan) {
		t.Errorf("Menu plan changed in flight: %+v", got.MenuPlan)
	}
	if !reflect.DeepEqual(got.SchedulePlan, orig.SchedulePlan) {
		t.Errorf("Schedule changed in flight: %+v", got.SchedulePlan)
	}
}

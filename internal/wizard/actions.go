package wizard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/store"
)

// Action is the closed set of mutations a resolver or the fallback engine can
// request against the turn accumulator.
type Action interface {
	isAction()
}

type UpdateEventInfo struct {
	Info EventInfo
}

type AddGuest struct {
	Guest Guest
}

type RemoveGuest struct {
	Index int // 0-based
}

type AddMenuItem struct {
	Item MenuItem
}

type AddSavedRecipe struct {
	RecipeID int64
}

type RemoveMenuItem struct {
	Index int // 0-based
}

type AddScheduleTask struct {
	Task ScheduleTask
}

type RemoveScheduleTask struct {
	Index int // 0-based
}

type SetSchedule struct {
	Tasks []ScheduleTask
}

type ConfirmStep struct {
	Step Step
}

func (UpdateEventInfo) isAction()    {}
func (AddGuest) isAction()           {}
func (RemoveGuest) isAction()        {}
func (AddMenuItem) isAction()        {}
func (AddSavedRecipe) isAction()     {}
func (RemoveMenuItem) isAction()     {}
func (AddScheduleTask) isAction()    {}
func (RemoveScheduleTask) isAction() {}
func (SetSchedule) isAction()        {}
func (ConfirmStep) isAction()        {}

// ErrOutOfRange marks a removal aimed past the end of a list. It is reported
// inline as a failed result, never thrown past the turn boundary.
var ErrOutOfRange = errors.New("index out of range")

// ActionResult is the discriminated outcome of one executed action.
type ActionResult struct {
	OK      bool
	Message string
	Err     error
}

func failure(err error, format string, args ...any) ActionResult {
	return ActionResult{OK: false, Message: fmt.Sprintf(format, args...), Err: err}
}

func success(format string, args ...any) ActionResult {
	return ActionResult{OK: true, Message: fmt.Sprintf(format, args...)}
}

// RecipeLibrary is the saved-recipe lookup the menu step validates
// references against.
type RecipeLibrary interface {
	GetRecipe(ctx context.Context, id int64, ownerID string) (*store.Recipe, error)
}

// Executor applies actions to the turn accumulator. Mutations happen under
// the accumulator lock; persistence is a single write-back at turn end.
type Executor struct {
	Confirms *ConfirmStore
	Library  RecipeLibrary
	Clock    func() time.Time
}

func NewExecutor(confirms *ConfirmStore, library RecipeLibrary) *Executor {
	return &Executor{
		Confirms: confirms,
		Library:  library,
		Clock:    time.Now,
	}
}

var emailShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Apply executes one action against the accumulator and returns a
// user-facing result. Validation failures never escape as errors.
func (e *Executor) Apply(ctx context.Context, acc *Accumulator, a Action) ActionResult {
	acc.mu.Lock()
	defer acc.mu.Unlock()

	s := acc.Session
	switch act := a.(type) {
	case UpdateEventInfo:
		info := act.Info
		s.EventInfo = &info
		return success("Saved event details for %q.", info.Name)

	case AddGuest:
		g := act.Guest
		// Models sometimes put a bare name in the email field; recover it.
		if g.Email != "" && !emailShapeRe.MatchString(g.Email) {
			if g.Name == "" {
				g.Name = g.Email
			}
			g.Email = ""
		}
		if g.Empty() {
			return failure(nil, "A guest needs at least a name, email, or phone number.")
		}
		if s.GuestList == nil {
			s.GuestList = &GuestList{}
		}
		s.GuestList.Guests = append(s.GuestList.Guests, g)
		return success("Added %s to the guest list.", g.Label())

	case RemoveGuest:
		if s.GuestList == nil || act.Index < 0 || act.Index >= len(s.GuestList.Guests) {
			return failure(ErrOutOfRange, "There is no guest #%d to remove.", act.Index+1)
		}
		removed := s.GuestList.Guests[act.Index]
		s.GuestList.Guests = append(s.GuestList.Guests[:act.Index], s.GuestList.Guests[act.Index+1:]...)
		return success("Removed %s from the guest list.", removed.Label())

	case AddMenuItem:
		if strings.TrimSpace(act.Item.Title) == "" {
			return failure(nil, "A menu item needs a title.")
		}
		if s.MenuPlan == nil {
			s.MenuPlan = &MenuPlan{}
		}
		s.MenuPlan.NewItems = append(s.MenuPlan.NewItems, act.Item)
		if act.Item.SourceURL != "" && !s.MenuPlan.HasURL(act.Item.SourceURL) {
			s.MenuPlan.SeenURLs = append(s.MenuPlan.SeenURLs, act.Item.SourceURL)
		}
		if act.Item.SourceHash != "" && !s.MenuPlan.HasHash(act.Item.SourceHash) {
			s.MenuPlan.SeenHashes = append(s.MenuPlan.SeenHashes, act.Item.SourceHash)
		}
		return success("Added %q to the menu.", act.Item.Title)

	case AddSavedRecipe:
		if e.Library == nil {
			return failure(nil, "The recipe library is not available.")
		}
		r, err := e.Library.GetRecipe(ctx, act.RecipeID, s.OwnerID)
		if err != nil {
			return failure(nil, "I couldn't find saved recipe #%d.", act.RecipeID)
		}
		if s.MenuPlan == nil {
			s.MenuPlan = &MenuPlan{}
		}
		for _, id := range s.MenuPlan.SavedRecipeIDs {
			if id == act.RecipeID {
				return failure(nil, "%q is already on the menu.", r.Title)
			}
		}
		s.MenuPlan.SavedRecipeIDs = append(s.MenuPlan.SavedRecipeIDs, act.RecipeID)
		return success("Added your saved recipe %q to the menu.", r.Title)

	case RemoveMenuItem:
		if s.MenuPlan == nil || act.Index < 0 || act.Index >= len(s.MenuPlan.NewItems) {
			return failure(ErrOutOfRange, "There is no menu item #%d to remove.", act.Index+1)
		}
		removed := s.MenuPlan.NewItems[act.Index]
		s.MenuPlan.NewItems = append(s.MenuPlan.NewItems[:act.Index], s.MenuPlan.NewItems[act.Index+1:]...)
		// Free the source for resubmission.
		s.MenuPlan.PurgeLedger(removed)
		return success("Removed %q from the menu.", removed.Title)

	case AddScheduleTask:
		if strings.TrimSpace(act.Task.Description) == "" {
			return failure(nil, "A schedule task needs a description.")
		}
		if s.SchedulePlan == nil {
			s.SchedulePlan = &SchedulePlan{}
		}
		s.SchedulePlan.Tasks = append(s.SchedulePlan.Tasks, act.Task)
		return success("Added %q to the schedule.", act.Task.Description)

	case RemoveScheduleTask:
		if s.SchedulePlan == nil || act.Index < 0 || act.Index >= len(s.SchedulePlan.Tasks) {
			return failure(ErrOutOfRange, "There is no schedule task #%d to remove.", act.Index+1)
		}
		removed := s.SchedulePlan.Tasks[act.Index]
		s.SchedulePlan.Tasks = append(s.SchedulePlan.Tasks[:act.Index], s.SchedulePlan.Tasks[act.Index+1:]...)
		return success("Removed %q from the schedule.", removed.Description)

	case SetSchedule:
		s.SchedulePlan = &SchedulePlan{Tasks: append([]ScheduleTask(nil), act.Tasks...)}
		return success("Drafted a cooking schedule with %d tasks.", len(act.Tasks))

	case ConfirmStep:
		return e.confirmLocked(acc, act.Step)
	}

	return failure(nil, "Unsupported action.")
}

// confirmPrompt accompanies a confirmation request in the text stream. The
// full summary travels only inside the request itself, so surfaces that
// render the request don't show it twice.
const confirmPrompt = "Does this look right? Confirm to continue, or tell me what to change."

// confirmLocked builds a confirmation request for the step's current payload
// and delivers it to the calling surface. Caller holds acc.mu.
func (e *Executor) confirmLocked(acc *Accumulator, step Step) ActionResult {
	s := acc.Session

	summary, err := summarizeStep(s, step)
	if err != nil {
		return failure(nil, "%v", err)
	}

	req, err := e.Confirms.Create(s, step, summary, e.Clock())
	if err != nil {
		return failure(nil, "Couldn't build a confirmation: %v", err)
	}

	acc.events = append(acc.events, TurnEvent{Type: EventConfirmationRequest, Payload: req})
	return success("%s", confirmPrompt)
}

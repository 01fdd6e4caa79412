package wizard

// Intents produced by the deterministic resolvers.
const (
	IntentConfirm              = "confirm"
	IntentAskMissingDatetime   = "ask-missing-datetime"
	IntentAskUnparseableDate   = "ask-unparseable-datetime"
	IntentAskMissingName       = "ask-missing-name"
	IntentAddGuests            = "add-guests"
	IntentRemoveGuest          = "remove-guest"
	IntentClarifyRemoval       = "clarify-removal"
	IntentCloseList            = "close-list"
)

// Outcome is the result of a deterministic resolver. Resolvers are pure and
// never persist; the caller executes Actions. When Handled is false the turn
// falls through to the next decision tier and Reason explains the decline.
type Outcome struct {
	Handled bool
	Intent  string
	Reply   string
	Actions []Action
	Reason  string
}

func handled(intent, reply string, actions ...Action) Outcome {
	return Outcome{Handled: true, Intent: intent, Reply: reply, Actions: actions}
}

func unhandled(reason string) Outcome {
	return Outcome{Reason: reason}
}

// ResolveClosing recognizes a list-closing phrase on the free-form collection
// steps and turns it into a confirmation request. Anything else falls through.
func ResolveClosing(step Step, text string) Outcome {
	if isClosingPhrase(text) {
		return handled(IntentCloseList, "", ConfirmStep{Step: step})
	}
	return unhandled("no-closing-signal")
}

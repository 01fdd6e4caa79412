package wizard

import (
	"regexp"
	"strings"
	"time"

	"github.com/lucas-homer/chefdeparty-sub001/internal/nldate"
)

var (
	quotedNameRe = regexp.MustCompile(`["“']([^"”']{2,80})["”']`)
	calledNameRe = regexp.MustCompile(`(?i)\b(?:called|named|call it|name it)\s+([A-Za-z0-9][^,.!?\n]{0,79})`)
	locationRe   = regexp.MustCompile(`(?i)\b(?:at|in)\s+([^,.!?\n]+)`)
)

// topicNames maps topical cue words to a generic inferred event label, used
// only when no explicit name exists.
var topicNames = []struct {
	cue  string
	name string
}{
	{"birthday", "Birthday Party"},
	{"housewarming", "Housewarming"},
	{"baby shower", "Baby Shower"},
	{"game night", "Game Night"},
	{"barbecue", "BBQ"},
	{"bbq", "BBQ"},
	{"cookout", "Cookout"},
	{"potluck", "Potluck"},
	{"brunch", "Brunch"},
	{"dinner", "Dinner Party"},
	{"party", "Party"},
}

var contribYes = []string{
	"potluck", "bring a dish", "bring something", "everyone brings",
	"byo", "byob", "contributions welcome", "happy for people to bring",
}

var contribNo = []string{
	"no need to bring", "nothing to bring", "don't bring", "dont bring",
	"just bring yourselves", "no contributions", "i'll handle the food",
	"ill handle the food",
}

// ResolveEventInfo pattern-matches an utterance against the event-info step's
// expected data. Pure: extraction is merged with the current payload and the
// decision table runs on the merged view.
func ResolveEventInfo(text string, current *EventInfo, ref time.Time) Outcome {
	lower := strings.ToLower(text)

	explicitName := extractEventName(text)
	inferredName := inferEventName(lower)
	date, dateOK := nldate.Parse(text, ref)
	dateTokens := nldate.HasDateTokens(text)
	location := extractLocation(text)
	contributions := extractContributions(lower)

	// Merge with what the step has already collected.
	merged := EventInfo{}
	if current != nil {
		merged = *current
	}
	if explicitName != "" {
		merged.Name = explicitName
	}
	if dateOK {
		merged.StartsAt = date
	}
	if location != "" {
		merged.Location = location
	}
	if contributions != nil {
		merged.AllowContributions = contributions
	}

	haveDate := !merged.StartsAt.IsZero()

	// An inferred name only stands in when it lets the step complete.
	if merged.Name == "" && inferredName != "" && haveDate {
		merged.Name = inferredName
	}

	switch {
	case merged.Name != "" && haveDate:
		return handled(IntentConfirm, "", UpdateEventInfo{Info: merged}, ConfirmStep{Step: StepEventInfo})

	case merged.Name != "" && dateTokens:
		return handled(IntentAskUnparseableDate,
			"I couldn't quite work out the date and time. Could you give it to me like \"next Saturday at 7pm\" or \"March 15 at 6pm\"?",
			UpdateEventInfo{Info: merged})

	case merged.Name != "":
		return handled(IntentAskMissingDatetime,
			"Sounds fun! When is "+merged.Name+" happening?",
			UpdateEventInfo{Info: merged})

	case haveDate:
		return handled(IntentAskMissingName,
			"Got the date. What would you like to call the event?",
			UpdateEventInfo{Info: merged})

	case dateTokens:
		return handled(IntentAskUnparseableDate,
			"I couldn't quite work out that date. Could you phrase it like \"this Friday at 6pm\" or \"June 5 at noon\"?")

	case inferredName != "":
		return handled(IntentAskMissingName,
			"Nice, a "+strings.ToLower(inferredName)+"! What should we call it, and when is it?")
	}

	return unhandled("no-signal")
}

func extractEventName(text string) string {
	if m := quotedNameRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := calledNameRe.FindStringSubmatch(text); m != nil {
		name := strings.TrimSpace(m[1])
		// "called Pete's 40th on Saturday": the date clause is not part of
		// the name.
		for _, sep := range []string{" on ", " at ", " this ", " next "} {
			if i := strings.Index(strings.ToLower(name), sep); i > 0 {
				name = strings.TrimSpace(name[:i])
			}
		}
		if name != "" {
			return name
		}
	}
	return ""
}

func inferEventName(lower string) string {
	for _, t := range topicNames {
		if strings.Contains(lower, t.cue) {
			return t.name
		}
	}
	return ""
}

// extractLocation finds a phrase following "at"/"in" that is not itself a
// bare time token ("at 7pm" is a time, not a place).
func extractLocation(text string) string {
	for _, m := range locationRe.FindAllStringSubmatch(text, -1) {
		phrase := strings.TrimSpace(m[1])
		if phrase == "" || nldate.IsTimeToken(phrase) {
			continue
		}
		// "at 7pm in the backyard": the leading clause may still be a time
		// followed by a real place; trim a leading time token.
		fields := strings.Fields(phrase)
		if len(fields) > 0 && nldate.IsTimeToken(fields[0]) {
			fields = fields[1:]
			if len(fields) > 0 {
				if p := strings.ToLower(fields[0]); p == "at" || p == "in" {
					fields = fields[1:]
				}
			}
			phrase = strings.TrimSpace(strings.Join(fields, " "))
			if phrase == "" {
				continue
			}
		}
		// "in the backyard at 7pm": drop a trailing time clause.
		if i := strings.LastIndex(strings.ToLower(phrase), " at "); i > 0 {
			if nldate.IsTimeToken(phrase[i+4:]) {
				phrase = strings.TrimSpace(phrase[:i])
			}
		}
		return phrase
	}
	return ""
}

func extractContributions(lower string) *bool {
	for _, kw := range contribNo {
		if strings.Contains(lower, kw) {
			no := false
			return &no
		}
	}
	for _, kw := range contribYes {
		if strings.Contains(lower, kw) {
			yes := true
			return &yes
		}
	}
	return nil
}

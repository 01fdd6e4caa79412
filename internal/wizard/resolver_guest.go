package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	emailTokenRe  = regexp.MustCompile(`[^\s@,;<>]+@[^\s@,;<>]+\.[^\s@,;<>]+`)
	phoneTokenRe  = regexp.MustCompile(`\+?\(?\d[\d\s().-]{5,}\d`)
	addVerbRe     = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:add|invite|include|also add|and|plus)\b[:\s]*`)
	removeVerbRe  = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:remove|delete|drop|take\s+(?:off|out))\s+(.+?)\s*[.!]?\s*$`)
	ordinalHashRe = regexp.MustCompile(`(?i)^(?:the\s+)?(?:#|number\s+)?(\d+)(?:st|nd|rd|th)?(?:\s+(?:one|guest|entry))?$`)
	ordinalSufRe  = regexp.MustCompile(`\d(?:st|nd|rd|th)`)
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"last": -1,
}

var closingPhrases = map[string]bool{
	"done": true, "i'm done": true, "im done": true, "that's all": true,
	"thats all": true, "that's it": true, "thats it": true,
	"that's everyone": true, "thats everyone": true, "all set": true,
	"no": true, "nope": true, "no more": true, "nobody else": true,
	"no one else": true,
}

// ResolveGuestList pattern-matches an utterance against the guest-list step:
// closing phrases confirm the list, removal phrases target one entry, and
// list-shaped input adds guests. Ordinary prose is declined rather than
// misread as a guest name.
func ResolveGuestList(text string, current *GuestList) Outcome {
	trimmed := strings.TrimSpace(text)

	if isClosingPhrase(trimmed) {
		return handled(IntentCloseList, "", ConfirmStep{Step: StepGuestList})
	}

	if m := removeVerbRe.FindStringSubmatch(trimmed); m != nil {
		return resolveGuestRemoval(m[1], current)
	}

	guests, _ := parseGuestInput(text)
	if len(guests) == 0 {
		return unhandled("no-signal")
	}

	actions := make([]Action, 0, len(guests))
	for _, g := range guests {
		actions = append(actions, AddGuest{Guest: g})
	}
	return handled(IntentAddGuests, "", actions...)
}

func isClosingPhrase(trimmed string) bool {
	normalized := strings.ToLower(strings.Trim(trimmed, " .!,"))
	return closingPhrases[normalized]
}

// resolveGuestRemoval matches the removal target by ordinal or by fuzzy match
// against existing entries. Ambiguity is surfaced, never auto-resolved.
func resolveGuestRemoval(target string, current *GuestList) Outcome {
	target = strings.TrimSpace(target)
	var guests []Guest
	if current != nil {
		guests = current.Guests
	}

	if idx, ok := parseOrdinal(target, len(guests)); ok {
		if idx < 0 || idx >= len(guests) {
			return handled(IntentClarifyRemoval,
				fmt.Sprintf("There are only %d guests on the list.", len(guests)))
		}
		return handled(IntentRemoveGuest, "", RemoveGuest{Index: idx})
	}

	needle := strings.ToLower(target)
	var matches []int
	for i, g := range guests {
		if strings.Contains(strings.ToLower(g.Name), needle) ||
			strings.Contains(strings.ToLower(g.Email), needle) ||
			strings.Contains(strings.ToLower(g.Phone), needle) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return handled(IntentClarifyRemoval,
			fmt.Sprintf("I couldn't find %q on the guest list. Who should I remove?", target))
	case 1:
		return handled(IntentRemoveGuest, "", RemoveGuest{Index: matches[0]})
	}
	return handled(IntentClarifyRemoval,
		fmt.Sprintf("There are %d guests matching %q. Which one should I remove — by number?", len(matches), target))
}

func parseOrdinal(target string, listLen int) (int, bool) {
	normalized := strings.ToLower(strings.Trim(target, " ."))
	for word, n := range ordinalWords {
		if normalized == word || normalized == "the "+word ||
			normalized == "the "+word+" one" || normalized == word+" one" ||
			normalized == "the "+word+" guest" {
			if n == -1 {
				return listLen - 1, true
			}
			return n - 1, true
		}
	}
	if m := ordinalHashRe.FindStringSubmatch(normalized); m != nil {
		// A bare number with no marker is too ambiguous to be an ordinal
		// unless written as "#2", "number 2" or "2nd".
		hasMarker := strings.Contains(normalized, "#") ||
			strings.Contains(normalized, "number") ||
			ordinalSufRe.MatchString(normalized)
		if hasMarker {
			n, _ := strconv.Atoi(m[1])
			return n - 1, true
		}
	}
	return -1, false
}

// parseGuestInput splits the input into candidate segments and parses each
// for an email, a phone-like token and a residual name. listLike reports
// whether the input carries list structure (explicit add verb, multiple
// lines, or delimiter punctuation); without it bare names are rejected so
// ordinary prose is not misread as a guest.
func parseGuestInput(text string) (guests []Guest, listLike bool) {
	hasAddVerb := addVerbRe.MatchString(text)
	hasEmail := emailTokenRe.MatchString(text)
	multiLine := strings.Contains(strings.TrimSpace(text), "\n")
	hasSemicolon := strings.Contains(text, ";")
	commaSplit := hasEmail && strings.Contains(text, ",")

	listLike = hasAddVerb || multiLine || hasSemicolon || commaSplit

	segments := splitSegments(text, commaSplit)
	for _, seg := range segments {
		g, ok := parseGuestSegment(seg)
		if !ok {
			continue
		}
		// A bare name is only trusted when the input is list-shaped.
		if g.Email == "" && g.Phone == "" && !listLike {
			continue
		}
		guests = append(guests, g)
	}
	return guests, listLike
}

func splitSegments(text string, splitCommas bool) []string {
	lines := strings.Split(text, "\n")
	var segments []string
	for _, line := range lines {
		parts := strings.Split(line, ";")
		if splitCommas {
			var expanded []string
			for _, p := range parts {
				expanded = append(expanded, strings.Split(p, ",")...)
			}
			parts = expanded
		}
		segments = append(segments, parts...)
	}
	return segments
}

func parseGuestSegment(seg string) (Guest, bool) {
	seg = addVerbRe.ReplaceAllString(seg, "")
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return Guest{}, false
	}

	var g Guest
	if email := emailTokenRe.FindString(seg); email != "" {
		g.Email = email
		seg = strings.Replace(seg, email, "", 1)
	}
	if phone := phoneTokenRe.FindString(seg); phone != "" && digitCount(phone) >= 7 {
		g.Phone = strings.TrimSpace(phone)
		seg = strings.Replace(seg, phone, "", 1)
	}

	name := strings.Trim(seg, " \t,;:<>()-–—")
	name = strings.TrimSpace(name)
	if name != "" {
		g.Name = name
	}

	if g.Empty() {
		return Guest{}, false
	}
	return g, true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

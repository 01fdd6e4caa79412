// Package nldate resolves natural-language date/time phrases ("next saturday
// at 7pm", "tomorrow", "March 15") against a reference instant. It never
// guesses: text with no recognizable date construct yields no result.
package nldate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	isoRe     = regexp.MustCompile(`\b(\d{4}-\d{1,2}-\d{1,2}(?:[T ]\d{1,2}:\d{2}(?::\d{2})?Z?)?)\b`)
	slashYRe  = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)
	slashRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
	yearRe    = regexp.MustCompile(`\b\d{4}\b`)
	clock12Re = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24Re = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	weekdayRe = regexp.MustCompile(`(?i)\b(?:(this|next|coming|following)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	weekendRe = regexp.MustCompile(`(?i)\b(?:(this|next|coming|following)\s+)?weekend\b`)
	monthRe   = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	timeWord  = regexp.MustCompile(`(?i)^\s*(?:at\s+)?(?:noon|midnight|\d{1,2}(?::\d{2})?\s*(?:am|pm)?|\d{1,2}:\d{2})\s*$`)

	tonightRe  = regexp.MustCompile(`(?i)\btonight\b`)
	todayRe    = regexp.MustCompile(`(?i)\btoday\b`)
	tomorrowRe = regexp.MustCompile(`(?i)\btomorrow\b`)
	relWordRe  = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|weekend|noon|midnight)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

type clock struct {
	hour, min int
	ok        bool
}

// extractClock finds an embedded 12-hour or 24-hour clock time.
func extractClock(text string) clock {
	lower := strings.ToLower(text)
	if m := clock12Re.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			min := 0
			if m[2] != "" {
				min, _ = strconv.Atoi(m[2])
			}
			if m[3] == "pm" && h != 12 {
				h += 12
			}
			if m[3] == "am" && h == 12 {
				h = 0
			}
			if min < 60 {
				return clock{hour: h, min: min, ok: true}
			}
		}
	}
	if m := clock24Re.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h < 24 && min < 60 {
			return clock{hour: h, min: min, ok: true}
		}
	}
	if strings.Contains(lower, "noon") {
		return clock{hour: 12, ok: true}
	}
	return clock{}
}

func atClock(day time.Time, c clock, fallback time.Time) time.Time {
	if c.ok {
		return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.min, 0, 0, day.Location())
	}
	// No explicit time: carry the reference's clock so "friday" parsed on a
	// Friday morning resolves to an instant not earlier than the reference.
	return time.Date(day.Year(), day.Month(), day.Day(),
		fallback.Hour(), fallback.Minute(), fallback.Second(), 0, day.Location())
}

// Parse resolves text to an instant relative to ref. The boolean is false
// when no date construct was found or the construct could not be resolved.
func Parse(text string, ref time.Time) (time.Time, bool) {
	c := extractClock(text)

	// (a) direct date-string parse
	if t, ok := parseDirect(text, ref, c); ok {
		return t, true
	}

	// (b) relative terms
	if tonightRe.MatchString(text) {
		day := ref
		cc := c
		if !cc.ok {
			cc = clock{hour: 19, ok: true}
			if time.Date(ref.Year(), ref.Month(), ref.Day(), 19, 0, 0, 0, ref.Location()).Before(ref) {
				day = day.AddDate(0, 0, 1)
			}
		}
		return atClock(day, cc, ref), true
	}
	if todayRe.MatchString(text) {
		return atClock(ref, c, ref), true
	}
	if tomorrowRe.MatchString(text) {
		return atClock(ref.AddDate(0, 0, 1), c, ref), true
	}

	// (c) weekday / weekend terms
	if m := weekdayRe.FindStringSubmatch(text); m != nil {
		return resolveWeekday(weekdays[strings.ToLower(m[2])], strings.ToLower(m[1]), ref, c), true
	}
	if m := weekendRe.FindStringSubmatch(text); m != nil {
		qualifier := strings.ToLower(m[1])
		target := time.Saturday
		if ref.Weekday() == time.Sunday && !forcesWeekOffset(qualifier) {
			target = time.Sunday
		}
		return resolveWeekday(target, qualifier, ref, c), true
	}

	// (d) month name + day of month
	if m := monthRe.FindStringSubmatch(text); m != nil {
		month := months[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		if day >= 1 && day <= 31 {
			year := ref.Year()
			explicitYear := m[3] != ""
			if explicitYear {
				year, _ = strconv.Atoi(m[3])
			}
			candidate := atClock(time.Date(year, month, day, 0, 0, 0, 0, ref.Location()), c, ref)
			if !explicitYear && beforeDay(candidate, ref) {
				candidate = candidate.AddDate(1, 0, 0)
			}
			return candidate, true
		}
	}

	return time.Time{}, false
}

func forcesWeekOffset(qualifier string) bool {
	return qualifier == "next" || qualifier == "following"
}

// resolveWeekday finds the nearest occurrence of target not earlier than ref,
// rolling a week forward when the given time has already passed, and only then
// applies the qualifier: "next"/"following" add a full week on top, so the
// qualified and unqualified forms always stay seven days apart.
func resolveWeekday(target time.Weekday, qualifier string, ref time.Time, c clock) time.Time {
	days := (int(target) - int(ref.Weekday()) + 7) % 7
	base := atClock(ref.AddDate(0, 0, days), c, ref)
	if base.Before(ref) {
		base = base.AddDate(0, 0, 7)
	}
	if forcesWeekOffset(qualifier) {
		return base.AddDate(0, 0, 7)
	}
	return base
}

// beforeDay reports whether t falls on a calendar day strictly before ref's.
func beforeDay(t, ref time.Time) bool {
	ty, tm, td := t.Date()
	ry, rm, rd := ref.Date()
	if ty != ry {
		return ty < ry
	}
	if tm != rm {
		return tm < rm
	}
	return td < rd
}

// parseDirect handles explicit date strings: ISO forms and slash dates. When
// the text carries no 4-digit year and the parsed instant is in the past, the
// year rolls forward until the instant is not earlier than ref.
func parseDirect(text string, ref time.Time, c clock) (time.Time, bool) {
	var raw string
	if m := isoRe.FindString(text); m != "" {
		raw = m
	} else if m := slashYRe.FindString(text); m != "" {
		raw = m
	} else if m := slashRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		t := atClock(time.Date(ref.Year(), time.Month(month), day, 0, 0, 0, 0, ref.Location()), c, ref)
		for t.Before(ref) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}
	if raw == "" {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(raw, ref.Location())
	if err != nil {
		return time.Time{}, false
	}
	if c.ok && t.Hour() == 0 && t.Minute() == 0 {
		t = time.Date(t.Year(), t.Month(), t.Day(), c.hour, c.min, 0, 0, t.Location())
	}
	if !yearRe.MatchString(raw) {
		for t.Before(ref) {
			t = t.AddDate(1, 0, 0)
		}
	}
	return t, true
}

// HasDateTokens reports whether text contains anything that looks like a date
// or time construct, parseable or not. Resolvers use this to distinguish "no
// date given" from "a date was given but could not be understood".
func HasDateTokens(text string) bool {
	if relWordRe.MatchString(text) {
		return true
	}
	if weekdayRe.MatchString(text) || monthRe.MatchString(text) {
		return true
	}
	if isoRe.MatchString(text) || slashYRe.MatchString(text) || slashRe.MatchString(text) {
		return true
	}
	if clock12Re.MatchString(text) || clock24Re.MatchString(text) {
		return true
	}
	return false
}

// IsTimeToken reports whether a phrase is a bare clock time ("7pm", "19:00",
// "at noon") rather than a place, so "at 7pm" is never read as a location.
func IsTimeToken(phrase string) bool {
	return timeWord.MatchString(phrase)
}

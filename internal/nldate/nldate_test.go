package nldate

import (
	"testing"
	"time"
)

// Monday, Feb 16 2026, 9:00 UTC.
var monMorning = time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)

func TestParseWeekdayOrdering(t *testing.T) {
	names := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

	for _, name := range names {
		plain, ok := Parse(name, monMorning)
		if !ok {
			t.Fatalf("Parse(%q) failed", name)
		}
		if plain.Before(monMorning) {
			t.Errorf("Parse(%q) = %v, before reference %v", name, plain, monMorning)
		}

		next, ok := Parse("next "+name, monMorning)
		if !ok {
			t.Fatalf("Parse(next %q) failed", name)
		}
		if got := next.Sub(plain); got != 7*24*time.Hour {
			t.Errorf("next %s - %s = %v, expected 168h", name, name, got)
		}
	}
}

func TestParseSameWeekdayRollsWhenTimePassed(t *testing.T) {
	// Friday evening; "friday at 9am" has already passed.
	friEvening := time.Date(2026, 2, 20, 18, 0, 0, 0, time.UTC)

	got, ok := Parse("friday at 9am", friEvening)
	if !ok {
		t.Fatal("Parse failed")
	}
	want := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// Same weekday, time still ahead: no roll.
	got, ok = Parse("friday at 9pm", friEvening)
	if !ok {
		t.Fatal("Parse failed")
	}
	want = time.Date(2026, 2, 20, 21, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseNextSameWeekdayAddsFullExtraWeek(t *testing.T) {
	// Friday evening; "friday at 9am" already rolls to the 27th, so "next"
	// must land a further week out, never on the same day as the plain form.
	friEvening := time.Date(2026, 2, 20, 18, 0, 0, 0, time.UTC)

	plain, ok := Parse("friday at 9am", friEvening)
	if !ok {
		t.Fatal("Parse failed")
	}
	next, ok := Parse("next friday at 9am", friEvening)
	if !ok {
		t.Fatal("Parse failed")
	}

	want := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}
	if next.Sub(plain) != 7*24*time.Hour {
		t.Errorf("Expected a full week between the forms, got %v", next.Sub(plain))
	}
}

func TestParseWeekendPhrase(t *testing.T) {
	got, ok := Parse("this weekend on Saturday at 7pm", monMorning)
	if !ok {
		t.Fatal("Parse failed")
	}
	want := time.Date(2026, 2, 21, 19, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// Bare "weekend" from a Sunday stays on the current weekend.
	sunday := time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC)
	got, ok = Parse("weekend", sunday)
	if !ok {
		t.Fatal("Parse failed")
	}
	if got.Day() != 22 {
		t.Errorf("Expected Sunday the 22nd, got %v", got)
	}
}

func TestParseTonight(t *testing.T) {
	got, ok := Parse("tonight", monMorning)
	if !ok {
		t.Fatal("Parse failed")
	}
	want := time.Date(2026, 2, 16, 19, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// After 7pm, "tonight" slides to the next evening.
	lateNight := time.Date(2026, 2, 16, 21, 30, 0, 0, time.UTC)
	got, ok = Parse("tonight", lateNight)
	if !ok {
		t.Fatal("Parse failed")
	}
	want = time.Date(2026, 2, 17, 19, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// An explicit time wins over the 7pm default.
	got, ok = Parse("tonight at 8:30pm", monMorning)
	if !ok {
		t.Fatal("Parse failed")
	}
	want = time.Date(2026, 2, 16, 20, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseTomorrow(t *testing.T) {
	got, ok := Parse("tomorrow at 9am", monMorning)
	if !ok {
		t.Fatal("Parse failed")
	}
	want := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseMonthDayRollsYear(t *testing.T) {
	nov := time.Date(2026, 11, 20, 12, 0, 0, 0, time.UTC)

	got, ok := Parse("March 15 at 6pm", nov)
	if !ok {
		t.Fatal("Parse failed")
	}
	want := time.Date(2027, 3, 15, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// An explicit year never rolls.
	got, ok = Parse("March 15, 2026", nov)
	if !ok {
		t.Fatal("Parse failed")
	}
	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 15 {
		t.Errorf("Expected 2026-03-15, got %v", got)
	}
}

func TestParseSlashDateRollsYear(t *testing.T) {
	late := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	got, ok := Parse("7/4", late)
	if !ok {
		t.Fatal("Parse failed")
	}
	if got.Year() != 2027 || got.Month() != time.July || got.Day() != 4 {
		t.Errorf("Expected 2027-07-04, got %v", got)
	}
}

func TestParseISO(t *testing.T) {
	got, ok := Parse("let's do 2026-12-31 at 6pm", monMorning)
	if !ok {
		t.Fatal("Parse failed")
	}
	want := time.Date(2026, 12, 31, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseRejectsNonDates(t *testing.T) {
	for _, text := range []string{"", "a party for my sister", "sometime soonish", "we'll see"} {
		if _, ok := Parse(text, monMorning); ok {
			t.Errorf("Parse(%q) unexpectedly succeeded", text)
		}
	}
}

func TestHasDateTokens(t *testing.T) {
	cases := map[string]bool{
		"next friday":          true,
		"at 7pm":               true,
		"March 15":             true,
		"12/25":                true,
		"tomorrow":             true,
		"a party for my mom":   false,
		"invite the neighbors": false,
	}
	for text, want := range cases {
		if got := HasDateTokens(text); got != want {
			t.Errorf("HasDateTokens(%q) = %v, expected %v", text, got, want)
		}
	}
}

func TestIsTimeToken(t *testing.T) {
	if !IsTimeToken("at 7pm") || !IsTimeToken("19:00") || !IsTimeToken("noon") {
		t.Error("Expected bare clock phrases to be time tokens")
	}
	if IsTimeToken("the park") || IsTimeToken("7 Main St") {
		t.Error("Expected places not to be time tokens")
	}
}

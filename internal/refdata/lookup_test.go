package refdata

import (
	"testing"

	"rebatedesk/internal"
	"rebatedesk/internal/events"
)

var testCols = internal.ReferenceColumns{
	Code:                 "manufacturer_product_code",
	Subsidiary:           "subsidiary",
	RequiredCompensation: "compensation_required",
}

func refRow(code, subsidiary, required string) internal.ReferenceRow {
	return internal.ReferenceRow{
		"manufacturer_product_code": code,
		"subsidiary":                subsidiary,
		"compensation_required":     required,
	}
}

func TestBuildLookupCaseInsensitiveKeys(t *testing.T) {
	lookup := BuildLookup([]internal.ReferenceRow{refRow("PX-789", "nl", "7.5")}, testCols, events.Discard)
	if len(lookup) != 1 {
		t.Fatalf("len=%d", len(lookup))
	}
	if got := lookup[NewKey("px-789", "NL")]; got != 7.5 {
		t.Fatalf("got %v", got)
	}
	if got := lookup[NewKey("Px-789", "Nl")]; got != 7.5 {
		t.Fatalf("mixed case key miss, got %v", got)
	}
}

func TestBuildLookupSkipsBadRows(t *testing.T) {
	warned := 0
	obs := events.ObserverFunc(func(e events.Event) {
		if e.Stage == events.StageLookup && e.Level == events.LevelWarn {
			warned++
		}
	})

	rows := []internal.ReferenceRow{
		refRow("", "NL", "7.5"),
		refRow("PX-1", "", "7.5"),
		refRow("PX-2", "NL", ""),
		refRow("PX-3", "NL", "not a number"),
		refRow("PX-4", "NL", "4.0"),
	}
	lookup := BuildLookup(rows, testCols, obs)
	if len(lookup) != 1 {
		t.Fatalf("len=%d", len(lookup))
	}
	if warned != 4 {
		t.Fatalf("warned=%d", warned)
	}
}

func TestBuildLookupLastWriteWins(t *testing.T) {
	rows := []internal.ReferenceRow{
		refRow("PX-789", "NL", "7.5"),
		refRow("px-789", "nl", "9.0"),
	}
	lookup := BuildLookup(rows, testCols, events.Discard)
	if len(lookup) != 1 {
		t.Fatalf("len=%d", len(lookup))
	}
	if got := lookup[NewKey("PX-789", "NL")]; got != 9.0 {
		t.Fatalf("got %v want 9.0", got)
	}
}

package refdata

import (
	"fmt"
	"strconv"
	"strings"

	"rebatedesk/internal"
	"rebatedesk/internal/events"
)

// Key identifies one reference entry. The code is lower-cased and the
// subsidiary upper-cased so lookups are case-insensitive on both parts.
type Key struct {
	Code       string
	Subsidiary string
}

// Lookup maps (manufacturer code, subsidiary) to the required compensation.
// Built once per evaluation run from current reference data, read-only
// afterward.
type Lookup map[Key]float64

func NewKey(code, subsidiary string) Key {
	return Key{
		Code:       strings.ToLower(strings.TrimSpace(code)),
		Subsidiary: strings.ToUpper(strings.TrimSpace(subsidiary)),
	}
}

// BuildLookup compiles the reference dataset into a lookup table. Rows with a
// missing code or subsidiary, or an unparseable required compensation, are
// skipped with a warning. Later rows overwrite earlier ones on the same key.
func BuildLookup(rows []internal.ReferenceRow, cols internal.ReferenceColumns, obs events.Observer) Lookup {
	lookup := make(Lookup, len(rows))
	skip := func(row int, message string) {
		obs.Observe(events.Event{
			Stage:     events.StageLookup,
			Level:     events.LevelWarn,
			ItemIndex: -1,
			Message:   fmt.Sprintf("reference row %d: %s, skipped", row+1, message),
		})
	}

	for i, row := range rows {
		code := strings.TrimSpace(row[cols.Code])
		if code == "" {
			skip(i, fmt.Sprintf("missing or empty '%s'", cols.Code))
			continue
		}
		subsidiary := strings.TrimSpace(row[cols.Subsidiary])
		if subsidiary == "" {
			skip(i, fmt.Sprintf("missing or empty '%s' for code '%s'", cols.Subsidiary, code))
			continue
		}
		rawRequired := strings.TrimSpace(row[cols.RequiredCompensation])
		if rawRequired == "" {
			skip(i, fmt.Sprintf("missing '%s' for code '%s' and subsidiary '%s'", cols.RequiredCompensation, code, subsidiary))
			continue
		}
		required, err := strconv.ParseFloat(rawRequired, 64)
		if err != nil {
			skip(i, fmt.Sprintf("non-numeric '%s' value '%s' for code '%s'", cols.RequiredCompensation, rawRequired, code))
			continue
		}
		lookup[NewKey(code, subsidiary)] = required
	}

	obs.Observe(events.Event{
		Stage:     events.StageLookup,
		Level:     events.LevelInfo,
		ItemIndex: -1,
		Message:   fmt.Sprintf("built reference lookup with %d entries", len(lookup)),
	})
	return lookup
}

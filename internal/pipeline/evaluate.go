package pipeline

import (
	"fmt"
	"strings"

	"rebatedesk/internal"
	"rebatedesk/internal/events"
	"rebatedesk/internal/refdata"
	"rebatedesk/internal/util"
)

// EvaluateItems decides desirability for every item: the offered factor must
// meet or exceed the required compensation for the item's (code, subsidiary)
// pair. Every item leaves with IsDesired set; any missing piece resolves to
// false with an event, never an error.
func EvaluateItems(items []internal.RebateItem, lookup refdata.Lookup, obs events.Observer) []internal.RebateItem {
	for i := range items {
		emit := func(level events.Level, message string) {
			obs.Observe(events.Event{
				Stage:     events.StageEvaluate,
				Level:     level,
				ItemIndex: i,
				Message:   message,
			})
		}
		items[i].IsDesired = util.BoolPtr(evaluateItem(items[i], lookup, emit))
	}
	return items
}

func evaluateItem(item internal.RebateItem, lookup refdata.Lookup, emit func(events.Level, string)) bool {
	if item.ManufacturerProductCode == nil || strings.TrimSpace(*item.ManufacturerProductCode) == "" {
		emit(events.LevelWarn, "missing manufacturer_product_code, not desired")
		return false
	}
	if item.Subsidiary == nil || strings.TrimSpace(*item.Subsidiary) == "" {
		emit(events.LevelWarn, fmt.Sprintf("missing subsidiary for code '%s', not desired", *item.ManufacturerProductCode))
		return false
	}

	key := refdata.NewKey(*item.ManufacturerProductCode, *item.Subsidiary)
	required, ok := lookup[key]
	if !ok {
		emit(events.LevelWarn, fmt.Sprintf("no reference entry for (code='%s', subsidiary='%s'), not desired", key.Code, key.Subsidiary))
		return false
	}

	if item.RebateCompensationFactor == nil {
		emit(events.LevelWarn, fmt.Sprintf("rebate_compensation_factor is missing for (code='%s', subsidiary='%s'), not desired", key.Code, key.Subsidiary))
		return false
	}

	offered := *item.RebateCompensationFactor
	if offered >= required {
		emit(events.LevelInfo, fmt.Sprintf("offered %v >= required %v, desired", offered, required))
		return true
	}
	emit(events.LevelInfo, fmt.Sprintf("offered %v < required %v, not desired", offered, required))
	return false
}

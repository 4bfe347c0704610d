package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"rebatedesk/internal"
	"rebatedesk/internal/events"
	"rebatedesk/internal/util"
)

// recognizedFields is the canonical field order. Every field appears in the
// output record, possibly nil; nothing is silently dropped.
var recognizedFields = []string{
	"manufacturer_product_code",
	"product_id",
	"product_name",
	"subsidiary",
	"start_date",
	"end_date",
	"campaign_promotion_related",
	"rebate_compensation_factor",
	"max_spq",
}

var (
	// Optional currency prefix, first numeric substring, optional EUR suffix.
	// Applied after comma decimal separators are replaced with a dot.
	factorPattern = regexp.MustCompile(`(?i)[€$]?\s*(\d+(?:\.\d+)?)\s*(?:EUR)?`)
	digitsPattern = regexp.MustCompile(`\d+`)
)

type fieldWarn func(field, message string)

// fieldTransforms assigns one recognized field onto the canonical record.
// Every transform degrades to nil on unexpected input and reports through
// warn; normalization never fails.
var fieldTransforms = map[string]func(item *internal.RebateItem, raw any, warn fieldWarn){
	"manufacturer_product_code": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.ManufacturerProductCode = toTrimmedString(raw, "manufacturer_product_code", warn)
	},
	"product_id": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.ProductID = toTrimmedString(raw, "product_id", warn)
	},
	"product_name": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.ProductName = toTrimmedString(raw, "product_name", warn)
	},
	"subsidiary": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.Subsidiary = toSubsidiary(raw, warn)
	},
	"start_date": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.StartDate = toTrimmedString(raw, "start_date", warn)
	},
	"end_date": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.EndDate = toTrimmedString(raw, "end_date", warn)
	},
	"campaign_promotion_related": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.CampaignPromotionRelated = toBoolFlag(raw, warn)
	},
	"rebate_compensation_factor": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.RebateCompensationFactor = toCompensationFactor(raw, warn)
	},
	"max_spq": func(item *internal.RebateItem, raw any, warn fieldWarn) {
		item.MaxSPQ = toMaxSPQ(raw, warn)
	},
}

// NormalizeCandidates turns a loosely typed candidate batch into canonical
// records. Elements that are not objects are skipped with a warning, matching
// the structural-failure rule: the batch always continues.
func NormalizeCandidates(candidates []any, obs events.Observer) []internal.RebateItem {
	out := make([]internal.RebateItem, 0, len(candidates))
	for i, value := range candidates {
		cand, ok := value.(map[string]any)
		if !ok {
			obs.Observe(events.Event{
				Stage:     events.StageNormalize,
				Level:     events.LevelWarn,
				ItemIndex: i,
				Message:   fmt.Sprintf("candidate is not an object (%T), skipped", value),
			})
			continue
		}
		out = append(out, NormalizeCandidate(internal.RawCandidate(cand), i, obs))
	}
	return out
}

// NormalizeCandidate converts one raw candidate into a RebateItem. Keys are
// matched case-insensitively and a raw value equal to "null" (any case,
// trimmed) becomes nil before the per-field transform runs.
func NormalizeCandidate(raw internal.RawCandidate, itemIndex int, obs events.Observer) internal.RebateItem {
	lowered := make(map[string]any, len(raw))
	for k, v := range raw {
		lowered[strings.ToLower(k)] = v
	}

	warn := func(field, message string) {
		obs.Observe(events.Event{
			Stage:     events.StageNormalize,
			Level:     events.LevelWarn,
			ItemIndex: itemIndex,
			Field:     field,
			Message:   message,
		})
	}

	var item internal.RebateItem
	for _, field := range recognizedFields {
		value := lowered[field]
		if isNullString(value) {
			value = nil
		}
		fieldTransforms[field](&item, value, warn)
	}
	return item
}

func isNullString(raw any) bool {
	s, ok := raw.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), "null")
}

func toTrimmedString(raw any, field string, warn fieldWarn) *string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return util.StringPtr(strings.TrimSpace(v))
	case bool:
		return util.StringPtr(strconv.FormatBool(v))
	case int:
		return util.StringPtr(strconv.Itoa(v))
	case float64:
		return util.StringPtr(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		warn(field, fmt.Sprintf("unexpected value type %T, set to null", raw))
		return nil
	}
}

// toSubsidiary maps free-form country strings onto NL/BE/DE. The substring
// probes run in priority order; anything unmatched becomes nil.
func toSubsidiary(raw any, warn fieldWarn) *string {
	if raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		warn("subsidiary", fmt.Sprintf("unexpected value type %T, set to null", raw))
		return nil
	}

	upper := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case containsAny(upper, "NL", "NETHERLANDS", "NEDERLAND"):
		return util.StringPtr(internal.SubsidiaryNL)
	case containsAny(upper, "BE", "BELGIUM", "BELGIE"):
		return util.StringPtr(internal.SubsidiaryBE)
	case containsAny(upper, "DE", "GERMANY", "DUITSLAND"):
		return util.StringPtr(internal.SubsidiaryDE)
	}
	warn("subsidiary", fmt.Sprintf("unrecognized subsidiary %q, set to null", s))
	return nil
}

// toCompensationFactor extracts an absolute per-unit value. Percentages and
// non-positive values are discarded: the field must hold an absolute factor
// greater than zero or nothing at all.
func toCompensationFactor(raw any, warn fieldWarn) *float64 {
	const field = "rebate_compensation_factor"
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return positiveFactor(v, field, warn)
	case int:
		return positiveFactor(float64(v), field, warn)
	case string:
		dotted := strings.ReplaceAll(v, ",", ".")
		match := factorPattern.FindStringSubmatch(dotted)
		if match == nil {
			warn(field, fmt.Sprintf("no absolute number found in %q, set to null", v))
			return nil
		}
		parsed, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			warn(field, fmt.Sprintf("could not parse %q from %q, set to null", match[1], v))
			return nil
		}
		if strings.Contains(v, "%") && parsed > 1 {
			warn(field, fmt.Sprintf("%q looks like a percentage, absolute factor required, set to null", v))
			return nil
		}
		return positiveFactor(parsed, field, warn)
	default:
		warn(field, fmt.Sprintf("unexpected value type %T, set to null", raw))
		return nil
	}
}

func positiveFactor(v float64, field string, warn fieldWarn) *float64 {
	if v <= 0 {
		warn(field, fmt.Sprintf("factor %v is not greater than 0, set to null", v))
		return nil
	}
	return util.FloatPtr(v)
}

// toMaxSPQ keeps integers as-is and extracts the first run of digits from
// strings. JSON numbers arrive as float64; only integral ones count.
func toMaxSPQ(raw any, warn fieldWarn) *int {
	const field = "max_spq"
	switch v := raw.(type) {
	case nil:
		return nil
	case int:
		if v < 0 {
			warn(field, fmt.Sprintf("negative quantity %d, set to null", v))
			return nil
		}
		return util.IntPtr(v)
	case float64:
		if v != math.Trunc(v) || v < 0 {
			warn(field, fmt.Sprintf("value %v is not a non-negative integer, set to null", v))
			return nil
		}
		return util.IntPtr(int(v))
	case string:
		digits := digitsPattern.FindString(v)
		if digits == "" {
			warn(field, fmt.Sprintf("no integer found in %q, set to null", v))
			return nil
		}
		parsed, err := strconv.Atoi(digits)
		if err != nil {
			warn(field, fmt.Sprintf("could not parse %q from %q, set to null", digits, v))
			return nil
		}
		return util.IntPtr(parsed)
	default:
		warn(field, fmt.Sprintf("unexpected value type %T, set to null", raw))
		return nil
	}
}

func toBoolFlag(raw any, warn fieldWarn) *bool {
	const field = "campaign_promotion_related"
	switch v := raw.(type) {
	case nil:
		return nil
	case bool:
		return util.BoolPtr(v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return util.BoolPtr(true)
		case "false", "no", "0":
			return util.BoolPtr(false)
		}
		warn(field, fmt.Sprintf("cannot convert %q to boolean, set to null", v))
		return nil
	default:
		warn(field, fmt.Sprintf("unexpected value type %T, set to null", raw))
		return nil
	}
}

func containsAny(s string, probes ...string) bool {
	for _, probe := range probes {
		if strings.Contains(s, probe) {
			return true
		}
	}
	return false
}

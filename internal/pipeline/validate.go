package pipeline

import (
	"fmt"
	"strings"
	"time"

	"rebatedesk/internal"
	"rebatedesk/internal/events"
)

// ValidateItems checks each item for completeness and semantic correctness.
// The result carries one entry per item with at least one issue; an empty
// result means all items are valid. Validation never mutates items and never
// blocks the pipeline: invalid items still flow on to evaluation.
func ValidateItems(items []internal.RebateItem, validCodes map[string]struct{}, obs events.Observer) []internal.ItemIssues {
	results := make([]internal.ItemIssues, 0)
	for i, item := range items {
		issues := validateItem(item, validCodes)
		if len(issues) == 0 {
			obs.Observe(events.Event{
				Stage:     events.StageValidate,
				Level:     events.LevelInfo,
				ItemIndex: i,
				Message:   "all required fields found and validated",
			})
			continue
		}
		for _, issue := range issues {
			obs.Observe(events.Event{
				Stage:     events.StageValidate,
				Level:     events.LevelWarn,
				ItemIndex: i,
				Message:   issue,
			})
		}
		results = append(results, internal.ItemIssues{ItemIndex: i, Issues: issues})
	}
	return results
}

// Required fields, in reporting order. A field is missing when it is nil or
// an empty/whitespace-only string; missing fields skip their specific check.
func validateItem(item internal.RebateItem, validCodes map[string]struct{}) []string {
	var issues []string
	missing := func(field string) {
		issues = append(issues, fmt.Sprintf("Field '%s' is missing or null.", field))
	}

	if missingString(item.StartDate) {
		missing("start_date")
	} else if !isISODate(*item.StartDate) {
		issues = append(issues, fmt.Sprintf("Field 'start_date' value '%s' is not in expected YYYY-MM-DD format.", *item.StartDate))
	}

	if missingString(item.EndDate) {
		missing("end_date")
	} else if !isISODate(*item.EndDate) {
		issues = append(issues, fmt.Sprintf("Field 'end_date' value '%s' is not in expected YYYY-MM-DD format.", *item.EndDate))
	}

	if item.RebateCompensationFactor == nil {
		missing("rebate_compensation_factor")
	} else if *item.RebateCompensationFactor <= 0 {
		issues = append(issues, fmt.Sprintf("Field 'rebate_compensation_factor' value '%v' is not greater than 0.", *item.RebateCompensationFactor))
	}

	if missingString(item.Subsidiary) {
		missing("subsidiary")
	} else if s := *item.Subsidiary; s != internal.SubsidiaryNL && s != internal.SubsidiaryBE && s != internal.SubsidiaryDE {
		issues = append(issues, fmt.Sprintf("Field 'subsidiary' has invalid value: '%s'. Expected one of ('NL', 'BE', 'DE').", s))
	}

	if missingString(item.ManufacturerProductCode) {
		missing("manufacturer_product_code")
	} else if _, ok := validCodes[strings.TrimSpace(*item.ManufacturerProductCode)]; !ok {
		issues = append(issues, fmt.Sprintf("Field 'manufacturer_product_code' has invalid value: '%s'. Not found in valid product codes.", *item.ManufacturerProductCode))
	}

	return issues
}

func missingString(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

// isISODate accepts YYYY-MM-DD only. time.Parse alone is lenient about
// zero padding, so the round trip is compared too.
func isISODate(v string) bool {
	parsed, err := time.Parse("2006-01-02", v)
	return err == nil && parsed.Format("2006-01-02") == v
}

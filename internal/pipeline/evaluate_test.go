package pipeline

import (
	"testing"

	"rebatedesk/internal"
	"rebatedesk/internal/events"
	"rebatedesk/internal/refdata"
)

func TestEvaluateOfferedMeetsRequired(t *testing.T) {
	lookup := refdata.Lookup{refdata.NewKey("PX-789", "NL"): 7.5}

	cases := []struct {
		name    string
		offered float64
		want    bool
	}{
		{name: "above", offered: 8.0, want: true},
		{name: "exactly equal", offered: 7.5, want: true},
		{name: "one cent below", offered: 7.49, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := validItem()
			item.RebateCompensationFactor = fp(tc.offered)
			out := EvaluateItems([]internal.RebateItem{item}, lookup, events.Discard)
			if out[0].IsDesired == nil || *out[0].IsDesired != tc.want {
				t.Fatalf("got %v want %v", out[0].IsDesired, tc.want)
			}
		})
	}
}

func TestEvaluateKeysAreCaseInsensitive(t *testing.T) {
	lookup := refdata.Lookup{refdata.NewKey("px-789", "nl"): 7.5}
	item := validItem()
	out := EvaluateItems([]internal.RebateItem{item}, lookup, events.Discard)
	if out[0].IsDesired == nil || !*out[0].IsDesired {
		t.Fatalf("lookup must be case-insensitive on code and subsidiary")
	}
}

func TestEvaluateFailuresResolveToFalse(t *testing.T) {
	lookup := refdata.Lookup{refdata.NewKey("PX-789", "NL"): 7.5}

	missingCode := validItem()
	missingCode.ManufacturerProductCode = nil

	missingSubsidiary := validItem()
	missingSubsidiary.Subsidiary = nil

	noReference := validItem()
	noReference.ManufacturerProductCode = strp("UNKNOWN-1")

	missingFactor := validItem()
	missingFactor.RebateCompensationFactor = nil

	out := EvaluateItems([]internal.RebateItem{missingCode, missingSubsidiary, noReference, missingFactor}, lookup, events.Discard)
	for i, item := range out {
		if item.IsDesired == nil {
			t.Fatalf("item %d: IsDesired not set", i)
		}
		if *item.IsDesired {
			t.Fatalf("item %d: expected not desired", i)
		}
	}
}

func TestPercentFactorEndsNotDesired(t *testing.T) {
	raw := internal.RawCandidate{
		"manufacturer_product_code":  "PX-789",
		"subsidiary":                 "NL",
		"start_date":                 "2025-07-01",
		"end_date":                   "2025-09-30",
		"rebate_compensation_factor": "10%",
	}
	item := NormalizeCandidate(raw, 0, events.Discard)
	if item.RebateCompensationFactor != nil {
		t.Fatalf("percentage must normalize to nil, got %v", *item.RebateCompensationFactor)
	}

	results := ValidateItems([]internal.RebateItem{item}, codeSet("PX-789"), events.Discard)
	if len(results) != 1 || results[0].Issues[0] != "Field 'rebate_compensation_factor' is missing or null." {
		t.Fatalf("results=%+v", results)
	}

	lookup := refdata.Lookup{refdata.NewKey("PX-789", "NL"): 7.5}
	out := EvaluateItems([]internal.RebateItem{item}, lookup, events.Discard)
	if out[0].IsDesired == nil || *out[0].IsDesired {
		t.Fatal("expected not desired")
	}
}

func TestEvaluateSetsIsDesiredOnEveryItem(t *testing.T) {
	out := EvaluateItems([]internal.RebateItem{{}, validItem()}, refdata.Lookup{}, events.Discard)
	for i, item := range out {
		if item.IsDesired == nil {
			t.Fatalf("item %d: IsDesired not set", i)
		}
	}
}

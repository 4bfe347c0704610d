package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rebatedesk/internal"
	"rebatedesk/internal/config"
	"rebatedesk/internal/events"
	"rebatedesk/internal/storage"
)

type stubExtractor struct {
	candidates []any
}

func (s stubExtractor) ExtractCandidates(ctx context.Context, subject, body string) ([]any, error) {
	return s.candidates, nil
}

func smokeConfig() config.Config {
	cfg, _ := config.Load()
	cfg.DetectThreshold = 0.45
	cfg.KnownSenders = nil
	cfg.RefCodeColumn = "manufacturer_product_code"
	cfg.RefSubsidiaryColumn = "subsidiary"
	cfg.RefCompensationColumn = "compensation_required"
	return cfg
}

func TestSmokeEmailToXLSX(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.ReplaceValidCodes([]string{"PX-789"}); err != nil {
		t.Fatal(err)
	}
	refRows := []internal.ReferenceRow{{
		"manufacturer_product_code": "px-789",
		"subsidiary":                "NL",
		"compensation_required":     "7.5",
	}}
	if err := db.ReplaceReferenceRows(refRows); err != nil {
		t.Fatal(err)
	}

	rawBlob, err := os.ReadFile(filepath.Join("testdata", "sample_rebate.eml"))
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(tmp, "fixture.eml")
	if err := os.WriteFile(rawPath, rawBlob, 0o644); err != nil {
		t.Fatal(err)
	}

	email, err := db.UpsertEmail("gmail", "<rebate-fixture-1@vendor.example.com>", "Sell-out rebate proposal PX-789 Q3", "sales@vendor.example.com", "2025-07-01T07:15:00Z", "hash", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	extractor := stubExtractor{candidates: []any{
		map[string]any{
			"manufacturer_product_code":  "PX-789",
			"product_name":               "Widget Pro",
			"subsidiary":                 "nl",
			"start_date":                 "2025-07-01",
			"end_date":                   "2025-09-30",
			"campaign_promotion_related": "yes",
			"rebate_compensation_factor": "€7,50",
			"max_spq":                    "100 units",
		},
	}}

	proc := NewProcessingService(db, smokeConfig(), extractor, events.Discard)
	res, err := proc.ProcessEmail(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "processed" {
		t.Fatalf("status=%s", res.Status)
	}
	if res.Items != 1 || res.Desired != 1 {
		t.Fatalf("items=%d desired=%d", res.Items, res.Desired)
	}

	rows, err := db.GetExportRows(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d", len(rows))
	}
	if !rows[0].IsDesired {
		t.Fatal("item should be desired")
	}
	if rows[0].Issues != "" {
		t.Fatalf("unexpected issues: %s", rows[0].Issues)
	}

	out := filepath.Join(tmp, "result.xlsx")
	if err := ExportRowsToXLSX(rows, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestSmokeUnknownSenderRejected(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rawBlob, err := os.ReadFile(filepath.Join("testdata", "sample_rebate.eml"))
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(tmp, "fixture.eml")
	if err := os.WriteFile(rawPath, rawBlob, 0o644); err != nil {
		t.Fatal(err)
	}

	email, err := db.UpsertEmail("gmail", "<rebate-fixture-2@vendor.example.com>", "Sell-out rebate proposal", "stranger@phish.example.com", "2025-07-01T07:15:00Z", "hash2", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	cfg := smokeConfig()
	cfg.KnownSenders = []string{"vendor.example.com"}

	proc := NewProcessingService(db, cfg, stubExtractor{}, events.Discard)
	res, err := proc.ProcessEmail(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "rejected" {
		t.Fatalf("status=%s", res.Status)
	}
	if res.Items != 0 {
		t.Fatalf("items=%d", res.Items)
	}
}

func strp(v string) *string { return &v }

func fp(v float64) *float64 { return &v }

func ip(v int) *int { return &v }

func bp(v bool) *bool { return &v }

package storage

import (
	"path/filepath"
	"testing"

	"rebatedesk/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertEmailIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	first, err := db.UpsertEmail("gmail", "<m1@example.com>", "Subject A", "a@example.com", "2025-07-01T00:00:00Z", "h1", "/tmp/m1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.UpsertEmail("gmail", "<m1@example.com>", "Subject B", "a@example.com", "2025-07-01T00:00:00Z", "h1", "/tmp/m1.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %d vs %d", first.ID, second.ID)
	}
	if second.Subject != "Subject B" {
		t.Fatalf("subject=%q", second.Subject)
	}
}

func TestReplaceValidCodes(t *testing.T) {
	db := openTestDB(t)

	if err := db.ReplaceValidCodes([]string{"PX-1", "PX-2", " ", "PX-2"}); err != nil {
		t.Fatal(err)
	}
	codes, err := db.ListValidCodes()
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 2 {
		t.Fatalf("codes=%v", codes)
	}

	if err := db.ReplaceValidCodes([]string{"PX-9"}); err != nil {
		t.Fatal(err)
	}
	codes, err = db.ListValidCodes()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := codes["PX-9"]; !ok || len(codes) != 1 {
		t.Fatalf("codes=%v", codes)
	}
}

func TestClearEmailProcessingRemovesItemsAndIssues(t *testing.T) {
	db := openTestDB(t)

	email, err := db.UpsertEmail("imap", "<m2@example.com>", "s", "v@example.com", "2025-07-01T00:00:00Z", "h2", "/tmp/m2.eml", "fetched")
	if err != nil {
		t.Fatal(err)
	}

	desired := true
	items := []internal.RebateItem{{IsDesired: &desired}}
	if err := db.InsertRebateItems(email.ID, items); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertItemIssues(email.ID, []internal.ItemIssues{{ItemIndex: 0, Issues: []string{"Field 'start_date' is missing or null."}}}); err != nil {
		t.Fatal(err)
	}

	rows, err := db.GetExportRows(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Issues == "" {
		t.Fatalf("rows=%+v", rows)
	}

	if err := db.ClearEmailProcessing(email.ID); err != nil {
		t.Fatal(err)
	}
	rows, err = db.GetExportRows(email.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetMetadata("refdata_imported_at")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("got=%v", *got)
	}

	if err := db.SetMetadata("refdata_imported_at", "2025-07-01"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("refdata_imported_at", "2025-08-01"); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetMetadata("refdata_imported_at")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != "2025-08-01" {
		t.Fatalf("got=%v", got)
	}
}

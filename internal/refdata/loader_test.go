package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoadReferenceRowsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refdata.csv")
	csv := "Manufacturer_Product_Code,Subsidiary,Compensation_Required\nPX-789,NL,7.5\npx-100, BE ,3.25\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	rows, err := LoadReferenceRowsCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[0]["manufacturer_product_code"] != "PX-789" {
		t.Fatalf("row0=%v", rows[0])
	}
	if rows[1]["subsidiary"] != "BE" {
		t.Fatalf("cell not trimmed: %q", rows[1]["subsidiary"])
	}
}

func TestLoadReferenceRowsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refdata.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	values := [][]any{
		{"Manufacturer_Product_Code", "Subsidiary", "Compensation_Required"},
		{"PX-789", "NL", "7.5"},
		{"PX-100", "DE", "2.0"},
	}
	for r, row := range values {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	rows, err := LoadReferenceRowsXLSX(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[1]["compensation_required"] != "2" && rows[1]["compensation_required"] != "2.0" {
		t.Fatalf("row1=%v", rows[1])
	}
}

func TestLoadCodeSetCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.csv")
	csv := "code\nPX-789\n\nPX-789\npx-100\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	codes, err := LoadCodeSetCSV(path, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(codes) != 2 {
		t.Fatalf("codes=%v", codes)
	}
	if codes[0] != "PX-789" || codes[1] != "px-100" {
		t.Fatalf("codes=%v", codes)
	}

	lowered, err := LoadCodeSetCSV(path, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(lowered) != 2 || lowered[0] != "px-789" {
		t.Fatalf("lowered=%v", lowered)
	}
}

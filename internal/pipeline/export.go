package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"rebatedesk/internal"
)

// ExportRowsToXLSX writes evaluated items with their validation issues to a
// spreadsheet for human review.
func ExportRowsToXLSX(rows []internal.RebateExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"item_index", "manufacturer_product_code", "product_id", "product_name",
		"subsidiary", "start_date", "end_date", "campaign_promotion_related",
		"rebate_compensation_factor", "max_spq", "is_desired", "validation_issues",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ItemIndex)
		set(2, derefString(row.ManufacturerProductCode))
		set(3, derefString(row.ProductID))
		set(4, derefString(row.ProductName))
		set(5, derefString(row.Subsidiary))
		set(6, derefString(row.StartDate))
		set(7, derefString(row.EndDate))
		set(8, derefBool(row.CampaignPromotionRelated))
		set(9, derefFloat(row.RebateCompensationFactor))
		set(10, derefInt(row.MaxSPQ))
		set(11, row.IsDesired)
		set(12, row.Issues)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefBool(v *bool) any {
	if v == nil {
		return ""
	}
	return *v
}

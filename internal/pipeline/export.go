package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	internal "github.com/bbrks/ocado-ha/internal"
)

// SnapshotToXLSX writes a snapshot as a two-sheet workbook: the reconciled
// orders and, when a receipt was found, the best-before buckets.
func SnapshotToXLSX(snap *internal.Snapshot, outputPath string) error {
	f := excelize.NewFile()
	ordersSheet := f.GetSheetName(0)
	_ = f.SetSheetName(ordersSheet, "Orders")
	ordersSheet = "Orders"

	headers := []string{
		"order_number", "updated", "delivery_start", "delivery_end",
		"delivery_window", "edit_deadline", "estimated_total", "status",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ordersSheet, cell, h)
	}

	for i, order := range snap.Orders {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(ordersSheet, cell, value)
		}

		set(1, order.OrderNumber)
		set(2, order.Updated.Format("2006-01-02 15:04"))
		set(3, derefTime(order.DeliveryStart))
		set(4, derefTime(order.DeliveryEnd))
		set(5, order.DeliveryWindow())
		set(6, derefTime(order.EditDeadline))
		set(7, derefString(order.EstimatedTotal))
		set(8, orderStatus(snap, order))
	}

	if snap.Receipt != nil && snap.Receipt.Almanac != nil {
		writeAlmanacSheet(f, snap.Receipt.Almanac)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeAlmanacSheet(f *excelize.File, almanac *internal.BBDAlmanac) {
	const sheet = "Best before"
	_, _ = f.NewSheet(sheet)

	_ = f.SetCellValue(sheet, "A1", "day")
	_ = f.SetCellValue(sheet, "B1", "date")
	_ = f.SetCellValue(sheet, "C1", "products")

	r := 2
	for day := 0; day <= 6; day++ {
		products, date := almanac.For(day)
		for _, product := range products {
			set := func(col int, value any) {
				cell, _ := excelize.CoordinatesToCellName(col, r)
				_ = f.SetCellValue(sheet, cell, value)
			}
			set(1, weekdayNames[day])
			set(2, date.Format("2006-01-02"))
			set(3, product)
			r++
		}
	}
	for _, product := range almanac.Longer() {
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
		set(1, "Over one week")
		set(3, product)
		r++
	}
}

func orderStatus(snap *internal.Snapshot, order internal.Order) string {
	switch order.OrderNumber {
	case snap.Next.OrderNumber:
		return "next"
	case snap.Upcoming.OrderNumber:
		return "upcoming"
	}
	return ""
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02 15:04")
}

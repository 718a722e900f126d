package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	internal "github.com/bbrks/ocado-ha/internal"
)

func TestSnapshotToXLSX(t *testing.T) {
	start := time.Date(2024, time.June, 14, 17, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	total := "42.00"
	order := internal.Order{
		Updated:        time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC),
		OrderNumber:    "1234567890",
		DeliveryStart:  &start,
		DeliveryEnd:    &end,
		EstimatedTotal: &total,
	}

	almanac := &internal.BBDAlmanac{DeliveryDate: time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC)}
	almanac.Buckets[0] = []string{"Milk"}
	almanac.Dates[0] = time.Date(2024, time.June, 17, 0, 0, 0, 0, time.UTC)
	almanac.Buckets[internal.BucketLonger] = []string{"Tinned tomatoes"}

	snap := &internal.Snapshot{
		RunID:   "run-1",
		Orders:  []internal.Order{order},
		Next:    order,
		Receipt: &internal.Receipt{OrderNumber: "1234567890", Almanac: almanac},
	}

	out := filepath.Join(t.TempDir(), "nested", "snapshot.xlsx")
	if err := SnapshotToXLSX(snap, out); err != nil {
		t.Fatalf("export: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("empty file")
	}
}

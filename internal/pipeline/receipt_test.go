package pipeline

import (
	"errors"
	"testing"
	"time"
)

// June 14 2024 is a Friday.
var receiptHeader = []string{
	"Your receipt",
	"Delivered on",
	"Friday 14 June 2024",
	"Order number 1234567890",
}

func TestBuildAlmanac(t *testing.T) {
	lines := append(append([]string{}, receiptHeader...),
		"Fridge",
		"Use by end of Monday",
		"Milk 1/2 3.00",
		"Tuesday",
		"Cheese (£2.50/EACH)",
		"",
		"",
		"Cupboard",
		"Use by end of Wednesday",
		"Bread 1/1 1.10",
		"Products with a 'use-by' date over one week",
		"Tinned Tomatoes 1/1 0.80",
		"Products with no 'use-by' date",
		"Olive oil 1/1 4.00",
	)

	almanac, err := BuildAlmanac(lines)
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	wantDelivery := time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC)
	if !almanac.DeliveryDate.Equal(wantDelivery) {
		t.Fatalf("delivery=%v", almanac.DeliveryDate)
	}

	monday, mondayDate := almanac.For(0)
	if len(monday) != 1 || monday[0] != "Milk" {
		t.Fatalf("monday=%v", monday)
	}
	if mondayDate.Day() != 17 {
		t.Fatalf("monday date=%v", mondayDate)
	}

	tuesday, _ := almanac.For(1)
	if len(tuesday) != 1 || tuesday[0] != "Cheese" {
		t.Fatalf("tuesday=%v", tuesday)
	}

	wednesday, _ := almanac.For(2)
	if len(wednesday) != 1 || wednesday[0] != "Bread" {
		t.Fatalf("wednesday=%v", wednesday)
	}

	longer := almanac.Longer()
	if len(longer) != 1 || longer[0] != "Tinned tomatoes" {
		t.Fatalf("longer=%v", longer)
	}

	// Products past the no-use-by marker never enter a bucket.
	for day := 0; day <= 6; day++ {
		products, _ := almanac.For(day)
		for _, p := range products {
			if p == "Olive oil" {
				t.Fatal("no-use-by product bucketed")
			}
		}
	}
}

func TestBuildAlmanacTomorrow(t *testing.T) {
	lines := append(append([]string{}, receiptHeader...),
		"Fridge",
		"Use by end of tomorrow",
		"Raspberries 1/1 2.00",
		"Products with no 'use-by' date",
	)

	almanac, err := BuildAlmanac(lines)
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	// Delivery was Friday, so tomorrow is Saturday.
	saturday, date := almanac.For(5)
	if len(saturday) != 1 || saturday[0] != "Raspberries" {
		t.Fatalf("saturday=%v", saturday)
	}
	if date.Weekday() != time.Saturday || date.Day() != 15 {
		t.Fatalf("date=%v", date)
	}
}

func TestBuildAlmanacDatesCoverWeek(t *testing.T) {
	almanac, err := BuildAlmanac(receiptHeader)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	for day := 0; day <= 6; day++ {
		_, date := almanac.For(day)
		diff := int(date.Sub(almanac.DeliveryDate).Hours() / 24)
		if diff < 1 || diff > 7 {
			t.Fatalf("day %d diff=%d", day, diff)
		}
	}
}

func TestBuildAlmanacNoSections(t *testing.T) {
	almanac, err := BuildAlmanac(receiptHeader)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	for i := range almanac.Buckets {
		if len(almanac.Buckets[i]) != 0 {
			t.Fatalf("bucket %d not empty", i)
		}
	}
}

func TestBuildAlmanacMissingDate(t *testing.T) {
	lines := []string{"Your receipt", "Fridge", "Use by end of Monday", "Milk 1/2 3.00"}
	if _, err := BuildAlmanac(lines); !errors.Is(err, ErrMalformedReceipt) {
		t.Fatalf("err=%v", err)
	}
}

func TestBuildAlmanacFreezerEndsSections(t *testing.T) {
	lines := append(append([]string{}, receiptHeader...),
		"Fridge",
		"Use by end of Monday",
		"Milk 1/2 3.00",
		"Freezer",
		"Peas 1/1 1.00",
	)

	almanac, err := BuildAlmanac(lines)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	monday, _ := almanac.For(0)
	if len(monday) != 1 || monday[0] != "Milk" {
		t.Fatalf("monday=%v", monday)
	}
	for day := 0; day <= 6; day++ {
		products, _ := almanac.For(day)
		for _, p := range products {
			if p == "Peas" {
				t.Fatal("freezer product bucketed")
			}
		}
	}
}

func TestCleanBucketStripsPricing(t *testing.T) {
	got := cleanBucket([]string{
		"Ocado Semi-Skimmed Milk 2/2 2.30",
		"Strawberries (£2.00/EACH)",
	})
	want := []string{"Ocado semi-skimmed milk", "Strawberries"}
	if len(got) != len(want) {
		t.Fatalf("got=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

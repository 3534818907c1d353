package models

import (
	"context"
	"testing"
)

func TestGetAvailableResourcesFiltersByTier(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedResource(t, db, "Free Title", 2)
	premium := Resource{
		Title:           "Premium Title",
		Author:          "Test Author",
		PackageType:     PackageTypePremium,
		TotalCopies:     1,
		AvailableCopies: 1,
	}
	if err := db.Create(&premium).Error; err != nil {
		t.Fatalf("failed to seed premium resource: %v", err)
	}
	exhausted := Resource{
		Title:           "All Out",
		Author:          "Test Author",
		PackageType:     PackageTypeFree,
		TotalCopies:     1,
		AvailableCopies: 0,
	}
	if err := db.Create(&exhausted).Error; err != nil {
		t.Fatalf("failed to seed exhausted resource: %v", err)
	}

	freeView, err := GetAvailableResources(ctx, PackageTypeFree)
	if err != nil {
		t.Fatalf("free catalog failed: %v", err)
	}
	for _, r := range freeView {
		if r.PackageType == PackageTypePremium {
			t.Fatalf("premium resource leaked into the free catalog: %+v", r)
		}
	}
	if len(freeView) != 2 {
		t.Fatalf("expected 2 free resources, got %d", len(freeView))
	}

	premiumView, err := GetAvailableResources(ctx, PackageTypePremium)
	if err != nil {
		t.Fatalf("premium catalog failed: %v", err)
	}
	if len(premiumView) != 3 {
		t.Fatalf("expected the full catalog for premium members, got %d", len(premiumView))
	}

	for _, r := range premiumView {
		if r.Title == "All Out" && r.Available {
			t.Fatalf("exhausted resource must not be flagged available")
		}
		if r.Title == "Free Title" && !r.Available {
			t.Fatalf("stocked resource must be flagged available")
		}
	}
}

func TestGetResourceKeywordsDeduplicates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedResource(t, db, "Shared Title", 1)
	second := Resource{
		Title:           "Shared Title",
		Author:          "Another Author",
		PackageType:     PackageTypeFree,
		TotalCopies:     1,
		AvailableCopies: 1,
	}
	if err := db.Create(&second).Error; err != nil {
		t.Fatalf("failed to seed resource: %v", err)
	}

	keywords, err := GetResourceKeywords(ctx)
	if err != nil {
		t.Fatalf("keywords failed: %v", err)
	}
	seen := map[string]int{}
	for _, k := range keywords {
		seen[k]++
		if seen[k] > 1 {
			t.Fatalf("keyword %q appears more than once", k)
		}
	}
	if seen["Shared Title"] != 1 || seen["Test Author"] != 1 || seen["Another Author"] != 1 {
		t.Fatalf("expected title and both authors in keywords, got %v", keywords)
	}
}

package nus

import "testing"

func TestRegionString(t *testing.T) {
	tests := []struct {
		region Region
		want   string
	}{
		{RegionEUR, "EUR"},
		{RegionUSA, "USA"},
		{RegionJPN, "JPN"},
		{RegionKOR, "KOR"},
		{RegionALL, "ALL"},
		{Region(42), "Region(42)"},
	}
	for _, tt := range tests {
		if got := tt.region.String(); got != tt.want {
			t.Errorf("Region(%d).String() = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestRegionCountryCode(t *testing.T) {
	tests := []struct {
		region  Region
		want    string
		wantErr bool
	}{
		{RegionEUR, "GB", false},
		{RegionUSA, "US", false},
		{RegionJPN, "JP", false},
		{RegionKOR, "KR", false},
		{RegionALL, "", true},
	}
	for _, tt := range tests {
		got, err := tt.region.CountryCode()
		if (err != nil) != tt.wantErr {
			t.Fatalf("Region(%d).CountryCode() error = %v, wantErr %v", tt.region, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("Region(%d).CountryCode() = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestAllRegionsExcludesAll(t *testing.T) {
	for _, r := range AllRegions() {
		if r == RegionALL {
			t.Fatalf("AllRegions() included RegionALL")
		}
	}
	if len(AllRegions()) != 4 {
		t.Fatalf("AllRegions() returned %d regions, want 4", len(AllRegions()))
	}
}

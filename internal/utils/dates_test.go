package utils

import (
	"testing"
	"time"
)

func TestCompactDate(t *testing.T) {
	local := time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("COT", -5*3600))
	if got := CompactDate(local); got != "20240301" {
		t.Fatalf("expected local date 20240301, got %s", got)
	}
	if got := CompactDate(local.UTC()); got != "20240302" {
		t.Fatalf("expected UTC date 20240302, got %s", got)
	}
}

func TestAddDays(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	if got := AddDays(start, 15); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseDateParam(t *testing.T) {
	end, err := ParseDateParam("2024-03-01", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if end.Day() != 1 || end.Hour() != 23 {
		t.Fatalf("expected end of day, got %s", end)
	}
	if v, err := ParseDateParam("", false); err != nil || v != nil {
		t.Fatalf("empty param should be nil")
	}
	if _, err := ParseDateParam("yesterday", false); err == nil {
		t.Fatalf("expected error for free text")
	}
}

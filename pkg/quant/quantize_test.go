package quant

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuantizeFloorsToLotStep(t *testing.T) {
	got, err := QuantizeSize(0.0019, "0.001")
	if err != nil {
		t.Fatalf("QuantizeSize returned error: %v", err)
	}
	if got != "0.001" {
		t.Fatalf("expected 0.001, got %s", got)
	}
}

func TestQuantizeNeverRoundsUp(t *testing.T) {
	cases := []struct {
		size float64
		step string
	}{
		{5.1, "0.01"},
		{0.30000000000000004, "0.1"},
		{123.456789, "0.001"},
		{7, "2"},
		{0.9999999, "0.0001"},
	}
	for _, tc := range cases {
		got, err := QuantizeSize(tc.size, tc.step)
		if err != nil {
			t.Fatalf("QuantizeSize(%v, %s) error: %v", tc.size, tc.step, err)
		}
		q, err := decimal.NewFromString(got)
		if err != nil {
			t.Fatalf("result %q is not a decimal: %v", got, err)
		}
		if q.GreaterThan(decimal.NewFromFloat(tc.size)) {
			t.Fatalf("QuantizeSize(%v, %s) = %s rounded up", tc.size, tc.step, got)
		}
		step := decimal.RequireFromString(tc.step)
		if !q.Mod(step).IsZero() {
			t.Fatalf("QuantizeSize(%v, %s) = %s is not a multiple of the step", tc.size, tc.step, got)
		}
	}
}

func TestQuantizeRejectsSizeBelowStep(t *testing.T) {
	_, err := QuantizeSize(0.0004, "0.001")
	if !errors.Is(err, ErrSizeTooSmall) {
		t.Fatalf("expected ErrSizeTooSmall, got %v", err)
	}
}

func TestQuantizeRejectsBadStep(t *testing.T) {
	if _, err := QuantizeSize(1, "0"); err == nil {
		t.Fatal("expected error for zero step")
	}
	if _, err := QuantizeSize(1, "abc"); err == nil {
		t.Fatal("expected error for unparsable step")
	}
}

func TestQuantizeKeepsStepPrecision(t *testing.T) {
	got, err := QuantizeSize(2.5, "0.010")
	if err != nil {
		t.Fatalf("QuantizeSize returned error: %v", err)
	}
	if got != "2.500" {
		t.Fatalf("expected 2.500, got %s", got)
	}
}

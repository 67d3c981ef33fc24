package math_test

import (
	deskmath "ProposalDesk/internal/math"
	"math"
	"testing"
)

func TestPriceNative(t *testing.T) {
	if got := deskmath.PriceNative(50, 10); got != 500 {
		t.Errorf("got %d, want 500", got)
	}
}

func TestBaseNative(t *testing.T) {
	if got := deskmath.BaseNative(7, 100); got != 700 {
		t.Errorf("got %d, want 700", got)
	}
}

func TestNotional(t *testing.T) {
	if got := deskmath.Notional(100, 50, 1); got != 5000 {
		t.Errorf("got %d, want 5000", got)
	}
	if got := deskmath.Notional(0, 50, 1); got != 0 {
		t.Errorf("zero size: got %d, want 0", got)
	}
}

func TestNotional_SaturatesAtInt64(t *testing.T) {
	got := deskmath.Notional(math.MaxInt64, math.MaxInt64, 2)
	if got != math.MaxInt64 {
		t.Errorf("got %d, want saturation at MaxInt64", got)
	}

	got = deskmath.Notional(math.MaxInt64, math.MaxInt64, -2)
	if got != -math.MaxInt64 {
		t.Errorf("got %d, want saturation at -MaxInt64", got)
	}
}

func TestAddSaturating(t *testing.T) {
	if got := deskmath.AddSaturating(1, 2); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := deskmath.AddSaturating(math.MaxInt64, 1); got != math.MaxInt64 {
		t.Errorf("overflow: got %d, want MaxInt64", got)
	}
	if got := deskmath.AddSaturating(-math.MaxInt64, -2); got != -math.MaxInt64 {
		t.Errorf("underflow: got %d, want -MaxInt64", got)
	}
}

package pointer

import (
	"testing"

	"github.com/frudas24/owbremote/internal/command"
)

// TestZone_SplitsAtMidline verifies the halves have no gap and no overlap.
func TestZone_SplitsAtMidline(t *testing.T) {
	cases := []struct {
		x    float64
		want command.Side
	}{
		{0, command.Left},
		{199.9, command.Left},
		{200, command.Right},
		{399, command.Right},
	}
	for _, tc := range cases {
		if got := Zone(tc.x, 400); got != tc.want {
			t.Fatalf("Zone(%v,400) = %s, want %s", tc.x, got, tc.want)
		}
	}
}

// TestSampleSide verifies samples use their own viewport width.
func TestSampleSide(t *testing.T) {
	if (Sample{X: 300, Width: 400}).Side() != command.Right {
		t.Fatalf("expected right side")
	}
	if (Sample{X: 300, Width: 800}).Side() != command.Left {
		t.Fatalf("expected left side")
	}
}

package geometry

import (
	"math"
	"testing"
)

var square = Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

func TestRingContains(t *testing.T) {
	// same square with the closing point duplicated
	closed := Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}

	// concave "U" shape, the notch is between lng 4 and 6 above lat 4
	u := Ring{{0, 0}, {10, 0}, {10, 10}, {6, 10}, {6, 4}, {4, 4}, {4, 10}, {0, 10}}

	tests := []struct {
		name string
		ring Ring
		p    Point
		want bool
	}{
		{"inside square", square, Point{5, 5}, true},
		{"outside square", square, Point{15, 5}, false},
		{"outside square left", square, Point{-1, 5}, false},
		{"inside closed ring", closed, Point{5, 5}, true},
		{"outside closed ring", closed, Point{5, 11}, false},
		// ray passes through the vertices at lat 10 of the notch
		{"ray through vertex", u, Point{2, 4}, true},
		{"inside notch", u, Point{5, 6}, false},
		{"inside right arm", u, Point{8, 8}, true},
		{"inside left arm at notch bottom", u, Point{1, 4}, true},
		{"degenerate ring", Ring{{0, 0}, {1, 1}}, Point{0.5, 0.5}, false},
		{"empty ring", nil, Point{0, 0}, false},
		{"NaN point", square, Point{math.NaN(), 5}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := RingContains(tt.ring, tt.p); got != tt.want {
				t.Errorf("RingContains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRingContainsHorizontalEdges(t *testing.T) {
	// staircase with horizontal edges at lat 5 level with the query point
	stairs := Ring{{0, 0}, {10, 0}, {10, 5}, {5, 5}, {5, 10}, {0, 10}}

	if !RingContains(stairs, Point{2, 5}) {
		t.Errorf("point on horizontal edge latitude should be inside")
	}
	if RingContains(stairs, Point{7, 7}) {
		t.Errorf("point above the step should be outside")
	}
	if !RingContains(stairs, Point{7, 3}) {
		t.Errorf("point below the step should be inside")
	}
}

func TestPolygonContains(t *testing.T) {
	hole := Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}}
	poly := NewPolygon(square, hole)

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"inside exterior", Point{2, 2}, true},
		{"inside hole", Point{5, 5}, false},
		{"outside", Point{20, 20}, false},
		{"outside bound", Point{-5, 5}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PolygonContains(poly, tt.p); got != tt.want {
				t.Errorf("PolygonContains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolygonContainsWithoutBound(t *testing.T) {
	poly := Polygon{Exterior: square}

	if !PolygonContains(poly, Point{5, 5}) {
		t.Errorf("literal polygon should contain its center")
	}

	b := poly.Bound()
	if b.X.Lo != 0 || b.X.Hi != 10 || b.Y.Lo != 0 || b.Y.Hi != 10 {
		t.Errorf("Bound() = %v", b)
	}
}

func TestMultiPolygonContains(t *testing.T) {
	far := Ring{{100, 100}, {110, 100}, {110, 110}, {100, 110}}
	mp := MultiPolygon{NewPolygon(square), NewPolygon(far)}

	if !MultiPolygonContains(mp, Point{105, 105}) {
		t.Errorf("second polygon should match")
	}
	if MultiPolygonContains(mp, Point{50, 50}) {
		t.Errorf("no polygon should match")
	}
	if MultiPolygonContains(nil, Point{5, 5}) {
		t.Errorf("empty multipolygon should not match")
	}
}

func BenchmarkPolygonContains(b *testing.B) {
	poly := NewPolygon(square, Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}})
	p := Point{2, 2}
	for i := 0; i < b.N; i++ {
		PolygonContains(poly, p)
	}
}

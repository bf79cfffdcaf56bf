package fusion

import (
	"image"
	"math"
	"testing"

	"go.viam.com/rdk/rimage"
)

func TestMeanDepthMixedValidity(t *testing.T) {
	dm := NewDepthMap(2, 2)
	dm.Set(0, 0, 1.0)
	dm.Set(1, 0, math.NaN())
	dm.Set(0, 1, 2.0)
	dm.Set(1, 1, -1.0)

	got := dm.MeanDepth(image.Rect(0, 0, 2, 2))
	if !almostEqual(got, 1.5, 1e-12) {
		t.Errorf("mean depth: got %v, want 1.5", got)
	}
}

func TestMeanDepthAllInvalid(t *testing.T) {
	dm := NewDepthMap(3, 3)
	dm.Set(1, 1, 0)
	dm.Set(2, 2, math.Inf(1))

	got := dm.MeanDepth(image.Rect(0, 0, 3, 3))
	if !math.IsNaN(got) {
		t.Errorf("all-invalid region must yield NaN, got %v", got)
	}
}

func TestMeanDepthClipsRegion(t *testing.T) {
	dm := NewDepthMap(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			dm.Set(x, y, 2.0)
		}
	}

	// A region hanging off every edge still only reads in-bounds cells.
	got := dm.MeanDepth(image.Rect(-5, -5, 10, 10))
	if !almostEqual(got, 2.0, 1e-12) {
		t.Errorf("clipped region mean: got %v, want 2.0", got)
	}

	// A region fully outside the map has no valid subset.
	got = dm.MeanDepth(image.Rect(10, 10, 20, 20))
	if !math.IsNaN(got) {
		t.Errorf("out-of-bounds region must yield NaN, got %v", got)
	}
}

func TestMeanDepthEmptyRegion(t *testing.T) {
	dm := NewDepthMap(4, 4)
	dm.Set(1, 1, 2.0)

	got := dm.MeanDepth(image.Rect(1, 1, 1, 1))
	if !math.IsNaN(got) {
		t.Errorf("zero-area region must yield NaN, got %v", got)
	}
}

func TestNewDepthMapStartsInvalid(t *testing.T) {
	dm := NewDepthMap(2, 3)
	if dm.Width() != 2 || dm.Height() != 3 {
		t.Fatalf("dims: got %dx%d, want 2x3", dm.Width(), dm.Height())
	}
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			if !math.IsNaN(dm.At(x, y)) {
				t.Errorf("cell (%d, %d) should start NaN, got %v", x, y, dm.At(x, y))
			}
		}
	}
}

func TestDepthMapFromRimage(t *testing.T) {
	src := rimage.NewEmptyDepthMap(3, 2)
	src.Set(0, 0, rimage.Depth(1500))
	src.Set(2, 1, rimage.Depth(250))

	dm := DepthMapFromRimage(src)
	if dm.Width() != 3 || dm.Height() != 2 {
		t.Fatalf("dims: got %dx%d, want 3x2", dm.Width(), dm.Height())
	}
	if !almostEqual(dm.At(0, 0), 1.5, 1e-12) {
		t.Errorf("(0,0): got %v, want 1.5", dm.At(0, 0))
	}
	if !almostEqual(dm.At(2, 1), 0.25, 1e-12) {
		t.Errorf("(2,1): got %v, want 0.25", dm.At(2, 1))
	}
	// A zero wire reading means no depth, not a zero distance.
	if !math.IsNaN(dm.At(1, 0)) {
		t.Errorf("(1,0): missing sample must convert to NaN, got %v", dm.At(1, 0))
	}
}

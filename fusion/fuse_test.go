package fusion

import (
	"image"
	"math"
	"testing"

	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/vision/objectdetection"
)

var testIntrinsics = &transform.PinholeCameraIntrinsics{Fx: 100, Fy: 100, Ppx: 50, Ppy: 50}

func uniformDepthMap(width, height int, meters float64) *DepthMap {
	dm := NewDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dm.Set(x, y, meters)
		}
	}
	return dm
}

func det(bounds, box image.Rectangle, score float64, label string) objectdetection.Detection {
	return objectdetection.NewDetection(bounds, box, score, label)
}

func TestFuseCountAndOrder(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	detections := []objectdetection.Detection{
		det(bounds, image.Rect(10, 10, 20, 20), 0.9, "a"),
		det(bounds, image.Rect(30, 30, 40, 40), 0.5, "b"),
		det(bounds, image.Rect(50, 50, 60, 60), 0.7, "c"),
	}
	dm := uniformDepthMap(100, 100, 2.0)

	estimates := Fuse(detections, dm, testIntrinsics, nil)
	if len(estimates) != len(detections) {
		t.Fatalf("estimate count: got %d, want %d", len(estimates), len(detections))
	}
	for i, est := range estimates {
		if est.Label != detections[i].Label() {
			t.Errorf("estimate %d: label %q, want %q", i, est.Label, detections[i].Label())
		}
		if est.Confidence != detections[i].Score() {
			t.Errorf("estimate %d: confidence %v, want %v", i, est.Confidence, detections[i].Score())
		}
	}
}

func TestFuseCornersShareMeanDepth(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	detections := []objectdetection.Detection{
		det(bounds, image.Rect(40, 40, 60, 80), 0.9, "box"),
	}
	dm := uniformDepthMap(100, 100, 2.0)

	estimates := Fuse(detections, dm, testIntrinsics, nil)
	est := estimates[0]
	if !almostEqual(est.MeanDepth, 2.0, 1e-12) {
		t.Fatalf("mean depth: got %v, want 2.0", est.MeanDepth)
	}
	for i, c := range est.Corners {
		if !almostEqual(c.Z, est.MeanDepth, 1e-12) {
			t.Errorf("corner %d: Z = %v, want shared mean depth %v", i, c.Z, est.MeanDepth)
		}
	}

	// Corner order is top-left, bottom-left, top-right, bottom-right.
	wantX := map[int]float64{
		CornerTopLeft:     2.0 * (40 - 50) / 100,
		CornerBottomLeft:  2.0 * (40 - 50) / 100,
		CornerTopRight:    2.0 * (60 - 50) / 100,
		CornerBottomRight: 2.0 * (60 - 50) / 100,
	}
	wantY := map[int]float64{
		CornerTopLeft:     2.0 * (40 - 50) / 100,
		CornerBottomLeft:  2.0 * (80 - 50) / 100,
		CornerTopRight:    2.0 * (40 - 50) / 100,
		CornerBottomRight: 2.0 * (80 - 50) / 100,
	}
	for i := range est.Corners {
		if !almostEqual(est.Corners[i].X, wantX[i], 1e-12) || !almostEqual(est.Corners[i].Y, wantY[i], 1e-12) {
			t.Errorf("corner %d: got (%v, %v), want (%v, %v)",
				i, est.Corners[i].X, est.Corners[i].Y, wantX[i], wantY[i])
		}
	}
}

func TestFuseLabelMap(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	detections := []objectdetection.Detection{
		det(bounds, image.Rect(10, 10, 20, 20), 0.9, "0"),
		det(bounds, image.Rect(30, 30, 40, 40), 0.8, "41"),
	}
	dm := uniformDepthMap(100, 100, 1.0)
	labels := map[string]string{"0": "person"}

	estimates := Fuse(detections, dm, testIntrinsics, labels)
	if estimates[0].Label != "person" {
		t.Errorf("mapped label: got %q, want %q", estimates[0].Label, "person")
	}
	if estimates[1].Label != "41" {
		t.Errorf("unmapped label must pass through: got %q, want %q", estimates[1].Label, "41")
	}
}

func TestFuseInvalidRegionStillEmits(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	detections := []objectdetection.Detection{
		det(bounds, image.Rect(10, 10, 20, 20), 0.9, "ghost"),
	}
	dm := NewDepthMap(100, 100) // all cells invalid

	estimates := Fuse(detections, dm, testIntrinsics, nil)
	if len(estimates) != 1 {
		t.Fatalf("detection with no usable depth must still yield an estimate, got %d", len(estimates))
	}
	est := estimates[0]
	if est.Valid() {
		t.Error("estimate over a dropout must be invalid")
	}
	if !math.IsNaN(est.MeanDepth) {
		t.Errorf("mean depth: got %v, want NaN", est.MeanDepth)
	}
	for i, c := range est.Corners {
		if PointValid(c) {
			t.Errorf("corner %d must be invalid, got (%v, %v, %v)", i, c.X, c.Y, c.Z)
		}
	}
	if est.Label != "ghost" || est.Confidence != 0.9 {
		t.Errorf("label/confidence must still carry over: got %q/%v", est.Label, est.Confidence)
	}
}

func TestFuseDegenerateBox(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	detections := []objectdetection.Detection{
		det(bounds, image.Rect(10, 10, 10, 10), 0.9, "point"),
	}
	dm := uniformDepthMap(100, 100, 3.0)

	estimates := Fuse(detections, dm, testIntrinsics, nil)
	if len(estimates) != 1 {
		t.Fatalf("estimate count: got %d, want 1", len(estimates))
	}
	if estimates[0].Valid() {
		t.Error("zero-area box has an empty region and must be invalid")
	}
}

func TestEstimateCenter(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	detections := []objectdetection.Detection{
		det(bounds, image.Rect(40, 40, 60, 60), 0.9, "centered"),
	}
	dm := uniformDepthMap(100, 100, 2.0)

	est := Fuse(detections, dm, testIntrinsics, nil)[0]
	center := est.Center()
	if !almostEqual(center.X, 0, 1e-12) || !almostEqual(center.Y, 0, 1e-12) || !almostEqual(center.Z, 2.0, 1e-12) {
		t.Errorf("center: got (%v, %v, %v), want (0, 0, 2)", center.X, center.Y, center.Z)
	}
}

func TestEstimateToMapInvalid(t *testing.T) {
	est := ObjectEstimate3D{Label: "x", Confidence: 0.4, MeanDepth: math.NaN()}
	m := est.ToMap()
	if m["mean_depth_m"] != nil {
		t.Errorf("invalid mean depth must serialize as nil, got %v", m["mean_depth_m"])
	}
	if m["corners"] != nil {
		t.Errorf("invalid corners must serialize as nil, got %v", m["corners"])
	}
}

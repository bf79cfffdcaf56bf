package fusion

import (
	"image"
	"math"

	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/vision/objectdetection"
)

// Fuse runs the fusion pass over one detector invocation. It emits exactly
// one estimate per detection, in the detector's own order: the region mean
// depth is computed once per box, then all four box corners are
// back-projected at that shared depth, approximating the object as a
// fronto-parallel plane. A detection whose region holds no valid depth still
// yields an estimate, flagged invalid through NaN.
//
// labels optionally remaps detector class labels to human-readable names;
// labels not present in the map pass through unchanged.
func Fuse(
	detections []objectdetection.Detection,
	depth *DepthMap,
	intr *transform.PinholeCameraIntrinsics,
	labels map[string]string,
) []ObjectEstimate3D {
	estimates := make([]ObjectEstimate3D, 0, len(detections))
	for _, det := range detections {
		est := ObjectEstimate3D{
			Label:      labelFor(labels, det.Label()),
			Confidence: det.Score(),
		}
		box := det.BoundingBox()
		if box == nil {
			est.MeanDepth = math.NaN()
			for i := range est.Corners {
				est.Corners[i] = InvalidPoint()
			}
			estimates = append(estimates, est)
			continue
		}
		est.MeanDepth = depth.MeanDepth(*box)
		corners := [4]image.Point{
			CornerTopLeft:     box.Min,
			CornerBottomLeft:  {X: box.Min.X, Y: box.Max.Y},
			CornerTopRight:    {X: box.Max.X, Y: box.Min.Y},
			CornerBottomRight: box.Max,
		}
		for i, px := range corners {
			// Backproject returns the invalid point alongside the error,
			// so a dropout propagates instead of becoming zero.
			pt, _ := Backproject(intr, float64(px.X), float64(px.Y), est.MeanDepth)
			est.Corners[i] = pt
		}
		estimates = append(estimates, est)
	}
	return estimates
}

func labelFor(labels map[string]string, raw string) string {
	if name, ok := labels[raw]; ok {
		return name
	}
	return raw
}

package fusion

import (
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// Corner indices into ObjectEstimate3D.Corners, named for the pixel corner
// of the source bounding box each point was projected from.
const (
	CornerTopLeft = iota
	CornerBottomLeft
	CornerTopRight
	CornerBottomRight
)

// ObjectEstimate3D is the per-detection fusion result: the detection's label
// and confidence, the representative depth of its box region, and the four
// box corners back-projected into camera coordinates at that shared depth.
// Estimates are created fresh each tick and carry no identity across ticks.
type ObjectEstimate3D struct {
	Label      string
	Confidence float64
	// MeanDepth is in meters. NaN when the box region held no valid sample;
	// the estimate is still emitted in that case, just flagged invalid.
	MeanDepth float64
	// Corners are ordered top-left, bottom-left, top-right, bottom-right.
	// All four share the mean depth as their Z coordinate.
	Corners [4]r3.Vector
}

// Valid reports whether the estimate carries usable 3D data.
func (e *ObjectEstimate3D) Valid() bool {
	return DepthValid(e.MeanDepth)
}

// Center returns the camera-frame midpoint of the four corners, or the
// invalid point when the estimate has no usable depth.
func (e *ObjectEstimate3D) Center() r3.Vector {
	if !e.Valid() {
		return InvalidPoint()
	}
	var sum r3.Vector
	for _, c := range e.Corners {
		sum = sum.Add(c)
	}
	return sum.Mul(1.0 / 4.0)
}

// CenterPose wraps Center for frame-system consumers.
func (e *ObjectEstimate3D) CenterPose() spatialmath.Pose {
	return spatialmath.NewPoseFromPoint(e.Center())
}

// ToMap converts the estimate for DoCommand responses. Invalid depths and
// points become nil so the result stays JSON-encodable.
func (e *ObjectEstimate3D) ToMap() map[string]interface{} {
	out := map[string]interface{}{
		"label":      e.Label,
		"confidence": e.Confidence,
	}
	if !e.Valid() {
		out["mean_depth_m"] = nil
		out["corners"] = nil
		out["center"] = nil
		return out
	}
	out["mean_depth_m"] = e.MeanDepth
	corners := make([]interface{}, len(e.Corners))
	for i, c := range e.Corners {
		corners[i] = vectorToMap(c)
	}
	out["corners"] = corners
	out["center"] = vectorToMap(e.Center())
	return out
}

func vectorToMap(v r3.Vector) map[string]float64 {
	return map[string]float64{"x": v.X, "y": v.Y, "z": v.Z}
}

// Package fusion is the detection-to-3D fusion core: it caches the most
// recent frames from the color, depth, and point cloud streams, aggregates
// depth over 2D box regions, back-projects pixels through a pinhole model,
// and decides tick by tick whether enough data exists to run a fusion pass.
// Nothing in this package touches hardware; the models own the device
// handles and feed plain data in.
package fusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/rimage/transform"
)

// ErrInvalidDepth reports a depth sample that is non-finite or non-positive.
var ErrInvalidDepth = errors.New("invalid depth value")

// InvalidPoint returns the marker for a point with no usable depth behind
// it. All three coordinates are NaN; a point with any NaN coordinate must be
// treated as wholly invalid downstream.
func InvalidPoint() r3.Vector {
	return r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
}

// PointValid reports whether every coordinate of p is finite.
func PointValid(p r3.Vector) bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// DepthValid reports whether z is a usable depth sample: finite and positive.
func DepthValid(z float64) bool {
	return isFinite(z) && z > 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Backproject maps pixel (u, v) with depth z (meters) to a camera-frame 3D
// point:
//
//	X = z*(u - cx)/fx, Y = z*(v - cy)/fy, Z = z
//
// The caller decides pixel integerization; no rounding happens here. An
// invalid z returns the all-NaN point and an error wrapping ErrInvalidDepth,
// which is loggable but never fatal.
func Backproject(intr *transform.PinholeCameraIntrinsics, u, v, z float64) (r3.Vector, error) {
	if !DepthValid(z) {
		return InvalidPoint(), fmt.Errorf("%w %v at pixel (%v, %v)", ErrInvalidDepth, z, u, v)
	}
	return r3.Vector{
		X: z * (u - intr.Ppx) / intr.Fx,
		Y: z * (v - intr.Ppy) / intr.Fy,
		Z: z,
	}, nil
}

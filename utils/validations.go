package utils

import (
	"errors"
	"fmt"
	"math"

	"go.viam.com/rdk/rimage/transform"
)

// ValidateIntrinsics checks the four pinhole scalars. Width and height are
// not required; the fusion core never rasterizes.
func ValidateIntrinsics(intr *transform.PinholeCameraIntrinsics) error {
	if intr == nil {
		return errors.New("intrinsics are required")
	}
	if !(intr.Fx > 0) || math.IsInf(intr.Fx, 0) {
		return fmt.Errorf("invalid focal length fx = %v", intr.Fx)
	}
	if !(intr.Fy > 0) || math.IsInf(intr.Fy, 0) {
		return fmt.Errorf("invalid focal length fy = %v", intr.Fy)
	}
	if math.IsNaN(intr.Ppx) || math.IsInf(intr.Ppx, 0) {
		return fmt.Errorf("invalid principal point cx = %v", intr.Ppx)
	}
	if math.IsNaN(intr.Ppy) || math.IsInf(intr.Ppy, 0) {
		return fmt.Errorf("invalid principal point cy = %v", intr.Ppy)
	}
	return nil
}

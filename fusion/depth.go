package fusion

import (
	"image"
	"math"

	"go.viam.com/rdk/rimage"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DepthMap is a dense grid of depth values in meters, addressed by pixel.
// Cells with no usable sample hold NaN. A map is replaced wholesale on each
// sensor update and is never mutated by the fusion pass.
type DepthMap struct {
	grid *mat.Dense
}

// NewDepthMap returns a width x height map with every cell marked invalid.
func NewDepthMap(width, height int) *DepthMap {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.NaN()
	}
	return &DepthMap{grid: mat.NewDense(height, width, data)}
}

func (dm *DepthMap) Width() int {
	_, c := dm.grid.Dims()
	return c
}

func (dm *DepthMap) Height() int {
	r, _ := dm.grid.Dims()
	return r
}

// Bounds returns the pixel rectangle covered by the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.Width(), dm.Height())
}

// At returns the depth in meters at pixel (x, y).
func (dm *DepthMap) At(x, y int) float64 {
	return dm.grid.At(y, x)
}

// Set stores a depth in meters at pixel (x, y).
func (dm *DepthMap) Set(x, y int, meters float64) {
	dm.grid.Set(y, x, meters)
}

// MeanDepth aggregates a pixel region into one representative depth: the
// arithmetic mean of the valid samples inside the region after clipping it
// to the map bounds. Non-finite and non-positive cells are discarded. When
// no valid sample remains the result is NaN, so a sensor dropout under the
// whole region is reported explicitly rather than as a misleading zero.
func (dm *DepthMap) MeanDepth(region image.Rectangle) float64 {
	region = region.Intersect(dm.Bounds())
	var valid []float64
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if z := dm.At(x, y); DepthValid(z) {
				valid = append(valid, z)
			}
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// DepthMapFromRimage converts a wire depth map (millimeters, zero meaning no
// reading) into meters with NaN marking the missing samples.
func DepthMapFromRimage(src *rimage.DepthMap) *DepthMap {
	dm := NewDepthMap(src.Width(), src.Height())
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			if d := src.GetDepth(x, y); d > 0 {
				dm.Set(x, y, float64(d)/1000.0)
			}
		}
	}
	return dm
}

package fusion

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/vision/objectdetection"

	"rgbdfusion/utils"
)

// Detector is the external 2D object detector collaborator: image in, boxes
// out. The vision service satisfies it.
type Detector interface {
	Detections(ctx context.Context, img image.Image, extra map[string]interface{}) ([]objectdetection.Detection, error)
}

// Engine owns the stream cache and runs the per-tick fusion decision: skip
// while a required stream is missing, otherwise detect and fuse. The engine
// has no timer of its own; the owning resource drives Tick on its schedule.
type Engine struct {
	logger   logging.Logger
	detector Detector
	intr     *transform.PinholeCameraIntrinsics
	labels   map[string]string
	cache    StreamCache
}

func NewEngine(
	detector Detector,
	intr *transform.PinholeCameraIntrinsics,
	labels map[string]string,
	logger logging.Logger,
) (*Engine, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if err := utils.ValidateIntrinsics(intr); err != nil {
		return nil, err
	}
	return &Engine{
		logger:   logger,
		detector: detector,
		intr:     intr,
		labels:   labels,
	}, nil
}

// UpdateColor stores the latest color frame. Producers call the Update
// methods at their own rates; last write wins.
func (e *Engine) UpdateColor(img image.Image) {
	e.cache.UpdateColor(img)
}

// UpdateDepth stores the latest depth map.
func (e *Engine) UpdateDepth(dm *DepthMap) {
	e.cache.UpdateDepth(dm)
}

// UpdateCloud stores the latest point cloud.
func (e *Engine) UpdateCloud(pc pointcloud.PointCloud) {
	e.cache.UpdateCloud(pc)
}

// Cache exposes the stream cache for status reporting.
func (e *Engine) Cache() *StreamCache {
	return &e.cache
}

// Tick runs one scheduler firing. While the color frame or the depth map has
// not arrived the tick is a no-op returning a nil slice and no error; that is
// the expected state during startup and stream gaps, re-evaluated every tick
// with nothing sticky about it. A detector failure is returned for the caller
// to log and skip. On success the result holds exactly one estimate per
// detection, detector order preserved.
func (e *Engine) Tick(ctx context.Context) ([]ObjectEstimate3D, error) {
	snap := e.cache.Snapshot()
	if !snap.Ready() {
		e.logger.Debug("waiting for sensor data")
		return nil, nil
	}
	detections, err := e.detector.Detections(ctx, snap.Color, nil)
	if err != nil {
		return nil, fmt.Errorf("detector failed: %w", err)
	}
	estimates := Fuse(detections, snap.Depth, e.intr, e.labels)
	for i := range estimates {
		est := &estimates[i]
		if est.Valid() {
			e.logger.Debugf("estimated depth of %s: %.2fm", est.Label, est.MeanDepth)
		} else {
			e.logger.Debugf("no valid depth inside box for %s", est.Label)
		}
	}
	return estimates, nil
}

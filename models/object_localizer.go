package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
	genericservice "go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/vision"
	rdk_utils "go.viam.com/utils"

	"rgbdfusion/fusion"
	"rgbdfusion/utils"
)

var ObjectLocalizer = resource.NewModel("viam", "rgbd-object-fusion", "object-localizer")

func init() {
	resource.RegisterService(genericservice.API, ObjectLocalizer,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newObjectLocalizer,
		},
	)
}

// IntrinsicsConfig carries the four pinhole scalars for cameras that do not
// report their own intrinsics.
type IntrinsicsConfig struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// Parameters converts the config block to the rdk intrinsics type.
func (ic *IntrinsicsConfig) Parameters() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Fx:  ic.Fx,
		Fy:  ic.Fy,
		Ppx: ic.Cx,
		Ppy: ic.Cy,
	}
}

type Config struct {
	CameraName       string            `json:"camera_name"`
	DetectorName     string            `json:"detector_name"`
	TickPeriodS      float64           `json:"tick_period_s"`   // fusion tick period in seconds (default 0.2)
	SensorPollHz     float64           `json:"sensor_poll_hz"`  // per-stream poll rate (default 15)
	ColorSource      string            `json:"color_source"`    // source name on the camera (default "color")
	DepthSource      string            `json:"depth_source"`    // source name on the camera (default "depth")
	Intrinsics       *IntrinsicsConfig `json:"intrinsics,omitempty"`
	LabelMap         map[string]string `json:"label_map,omitempty"`
	EnablePointCloud bool              `json:"enable_point_cloud"`
	EnableOnStart    bool              `json:"enable_on_start"`
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit required (first return) and optional (second return) dependencies based on the config.
// The path is the JSON path in your robot's config (not the `Config` struct) to the
// resource being validated; e.g. "services.0".
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.CameraName == "" {
		return nil, nil, errors.New("camera_name is required")
	}
	if cfg.DetectorName == "" {
		return nil, nil, errors.New("detector_name is required")
	}
	if cfg.TickPeriodS < 0 {
		return nil, nil, errors.New("tick_period_s must be greater than 0")
	}
	if cfg.TickPeriodS == 0 {
		cfg.TickPeriodS = 0.2
	}
	if cfg.SensorPollHz < 0 {
		return nil, nil, errors.New("sensor_poll_hz must be greater than 0")
	}
	if cfg.SensorPollHz == 0 {
		cfg.SensorPollHz = 15.0
	}
	if cfg.ColorSource == "" {
		cfg.ColorSource = "color"
	}
	if cfg.DepthSource == "" {
		cfg.DepthSource = "depth"
	}
	if cfg.Intrinsics != nil {
		if err := utils.ValidateIntrinsics(cfg.Intrinsics.Parameters()); err != nil {
			return nil, nil, err
		}
	}
	return []string{cfg.CameraName, cfg.DetectorName}, nil, nil
}

type objectLocalizer struct {
	resource.AlwaysRebuild
	name resource.Name

	logger logging.Logger
	cfg    *Config

	cam    camera.Camera
	engine *fusion.Engine

	// Latest fusion result, read back through DoCommand.
	mu        sync.Mutex
	estimates []fusion.ObjectEstimate3D

	worker *rdk_utils.StoppableWorkers
}

func newObjectLocalizer(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewObjectLocalizer(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewObjectLocalizer(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	configJSON, _ := json.MarshalIndent(conf, "", "  ")
	logger.Debugf("Creating object localizer with the following config:\n%s", configJSON)

	cam, err := camera.FromDependencies(deps, conf.CameraName)
	if err != nil {
		return nil, fmt.Errorf("failed to get camera resource: %w", err)
	}

	detector, err := vision.FromDependencies(deps, conf.DetectorName)
	if err != nil {
		return nil, fmt.Errorf("failed to get detector resource: %w", err)
	}

	intr, err := resolveIntrinsics(ctx, conf.Intrinsics, cam)
	if err != nil {
		return nil, err
	}

	engine, err := fusion.NewEngine(detector, intr, conf.LabelMap, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fusion engine: %w", err)
	}

	s := &objectLocalizer{
		name:   name,
		logger: logger,
		cfg:    conf,
		cam:    cam,
		engine: engine,
		worker: rdk_utils.NewBackgroundStoppableWorkers(),
	}

	if conf.EnableOnStart {
		s.worker.Add(s.colorLoop)
		s.worker.Add(s.depthLoop)
		if conf.EnablePointCloud {
			s.worker.Add(s.cloudLoop)
		}
		s.worker.Add(s.tickLoop)
		s.logger.Info("RGB-D object localizer started")
	}

	return s, nil
}

// resolveIntrinsics prefers the config block and falls back to the camera's
// own reported intrinsics, the way a depth camera driver exposes them.
func resolveIntrinsics(ctx context.Context, conf *IntrinsicsConfig, cam camera.Camera) (*transform.PinholeCameraIntrinsics, error) {
	if conf != nil {
		return conf.Parameters(), nil
	}
	props, err := cam.Properties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera properties: %w", err)
	}
	if props.IntrinsicParams == nil {
		return nil, errors.New("camera reports no intrinsics; set them in the config")
	}
	return props.IntrinsicParams, nil
}

func (s *objectLocalizer) Name() resource.Name {
	return s.name
}

func (s *objectLocalizer) Close(ctx context.Context) error {
	s.worker.Stop()
	return nil
}

func (s *objectLocalizer) grabImage(ctx context.Context, sourceName string) (image.Image, error) {
	imgs, _, err := s.cam.Images(ctx, []string{sourceName}, nil)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("no %q image returned from camera", sourceName)
	}
	return imgs[0].Image(ctx)
}

// colorLoop is the color stream producer. On any fetch or conversion failure
// the previously cached frame is retained rather than cleared.
func (s *objectLocalizer) colorLoop(ctx context.Context) {
	ticker := time.NewTicker(utils.IntervalFromHz(s.cfg.SensorPollHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := s.grabImage(ctx, s.cfg.ColorSource)
			if err != nil {
				s.logger.Errorf("Failed to fetch color frame: %v", err)
				continue
			}
			s.engine.UpdateColor(img)
		}
	}
}

// depthLoop is the depth stream producer; same stale-retention policy.
func (s *objectLocalizer) depthLoop(ctx context.Context) {
	ticker := time.NewTicker(utils.IntervalFromHz(s.cfg.SensorPollHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := s.grabImage(ctx, s.cfg.DepthSource)
			if err != nil {
				s.logger.Errorf("Failed to fetch depth frame: %v", err)
				continue
			}
			dm, err := rimage.ConvertImageToDepthMap(ctx, img)
			if err != nil {
				s.logger.Errorf("Failed to convert depth frame: %v", err)
				continue
			}
			s.engine.UpdateDepth(fusion.DepthMapFromRimage(dm))
		}
	}
}

func (s *objectLocalizer) cloudLoop(ctx context.Context) {
	ticker := time.NewTicker(utils.IntervalFromHz(s.cfg.SensorPollHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pc, err := s.cam.NextPointCloud(ctx, nil)
			if err != nil {
				s.logger.Errorf("Failed to fetch point cloud: %v", err)
				continue
			}
			s.engine.UpdateCloud(pc)
		}
	}
}

func (s *objectLocalizer) tickLoop(ctx context.Context) {
	interval := utils.IntervalFromSeconds(s.cfg.TickPeriodS)
	s.logger.Infof("Fusion tick interval: %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			estimates, err := s.engine.Tick(ctx)
			if err != nil {
				s.logger.Errorf("Fusion tick failed: %v", err)
				continue
			}
			if estimates == nil {
				// Waiting for sensor data; the engine already logged it.
				continue
			}
			s.mu.Lock()
			s.estimates = estimates
			s.mu.Unlock()
			s.logger.Debugf("Fused %d detections", len(estimates))
		}
	}
}

func (s *objectLocalizer) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	s.logger.Debugf("DoCommand: %+v", cmd)
	switch cmd["command"] {
	case "get-estimates":
		s.mu.Lock()
		estimates := s.estimates
		s.mu.Unlock()
		out := make([]interface{}, len(estimates))
		for i := range estimates {
			out[i] = estimates[i].ToMap()
		}
		return map[string]interface{}{
			"estimates": out,
		}, nil

	case "get-status":
		snap := s.engine.Cache().Snapshot()
		state := "IDLE"
		if snap.Ready() {
			state = "ACTIVE"
		}
		status := map[string]interface{}{
			"state":           state,
			"has_color":       snap.Color != nil,
			"has_depth":       snap.Depth != nil,
			"has_point_cloud": snap.Cloud != nil,
		}
		if snap.Cloud != nil {
			status["point_cloud_size"] = snap.Cloud.Size()
		}
		return status, nil

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

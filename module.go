package rgbdfusion

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/erh/vmodutils"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/robot"
	genericservice "go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/vision"

	"rgbdfusion/fusion"
	"rgbdfusion/utils"
)

var RemoteLocalizer = resource.NewModel("viam", "rgbd-object-fusion", "remote-localizer")

func init() {
	resource.RegisterService(genericservice.API, RemoteLocalizer,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newRemoteLocalizer,
		},
	)
}

// Config for the remote localizer, which connects to a live machine from the
// environment and pulls frames per tick instead of running stream pollers.
type Config struct {
	CameraName    string            `json:"camera_name"`
	DetectorName  string            `json:"detector_name"`
	TickPeriodS   float64           `json:"tick_period_s"` // fusion tick period in seconds (default 0.2)
	ColorSource   string            `json:"color_source"`  // source name on the camera (default "color")
	DepthSource   string            `json:"depth_source"`  // source name on the camera (default "depth")
	Fx            float64           `json:"fx"`            // intrinsics; all four zero means read them from the camera
	Fy            float64           `json:"fy"`
	Cx            float64           `json:"cx"`
	Cy            float64           `json:"cy"`
	LabelMap      map[string]string `json:"label_map,omitempty"`
	EnableOnStart bool              `json:"enable_on_start"`
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit required (first return) and optional (second return) dependencies based on the config.
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
	if cfg.ColorSource == "" {
		cfg.ColorSource = "color"
	}
	if cfg.DepthSource == "" {
		cfg.DepthSource = "depth"
	}
	// The camera and detector live on the remote machine, not in deps.
	return nil, nil, nil
}

func (cfg *Config) intrinsics() *transform.PinholeCameraIntrinsics {
	if cfg.Fx == 0 && cfg.Fy == 0 && cfg.Cx == 0 && cfg.Cy == 0 {
		return nil
	}
	return &transform.PinholeCameraIntrinsics{Fx: cfg.Fx, Fy: cfg.Fy, Ppx: cfg.Cx, Ppy: cfg.Cy}
}

type remoteLocalizer struct {
	resource.AlwaysRebuild

	name resource.Name

	logger logging.Logger
	cfg    *Config

	cancelCtx  context.Context
	cancelFunc func()

	robotClient robot.Robot
	cam         camera.Camera
	engine      *fusion.Engine

	mu        sync.Mutex
	estimates []fusion.ObjectEstimate3D
}

func newRemoteLocalizer(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewRemoteLocalizer(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewRemoteLocalizer(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {

	cancelCtx, cancelFunc := context.WithCancel(context.Background())

	robotClient, err := vmodutils.ConnectToMachineFromEnv(ctx, logger)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to connect to robot: %w", err)
	}

	cam, err := camera.FromRobot(robotClient, conf.CameraName)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to get camera %q: %w", conf.CameraName, err)
	}

	detector, err := vision.FromRobot(robotClient, conf.DetectorName)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to get detector %q: %w", conf.DetectorName, err)
	}

	intr := conf.intrinsics()
	if intr == nil {
		props, err := cam.Properties(ctx)
		if err != nil {
			cancelFunc()
			return nil, fmt.Errorf("failed to read camera properties: %w", err)
		}
		if props.IntrinsicParams == nil {
			cancelFunc()
			return nil, errors.New("camera reports no intrinsics; set fx/fy/cx/cy in the config")
		}
		intr = props.IntrinsicParams
	}

	engine, err := fusion.NewEngine(detector, intr, conf.LabelMap, logger)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to create fusion engine: %w", err)
	}

	s := &remoteLocalizer{
		name:        name,
		logger:      logger,
		cfg:         conf,
		cancelCtx:   cancelCtx,
		cancelFunc:  cancelFunc,
		robotClient: robotClient,
		cam:         cam,
		engine:      engine,
	}

	if conf.EnableOnStart {
		go s.fusionLoop(s.cancelCtx)
		s.logger.Info("Remote RGB-D localizer started")
	}

	return s, nil
}

func (s *remoteLocalizer) Name() resource.Name {
	return s.name
}

func (s *remoteLocalizer) Close(context.Context) error {
	s.cancelFunc()
	return nil
}

func (s *remoteLocalizer) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
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

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

func (s *remoteLocalizer) fusionLoop(ctx context.Context) {
	interval := utils.IntervalFromSeconds(s.cfg.TickPeriodS)
	s.logger.Infof("Fusion tick interval: %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Pull-based producers: refresh whichever streams respond and
			// tick regardless, leaving failed streams stale in the cache.
			if img, err := s.grabImage(ctx, s.cfg.ColorSource); err != nil {
				s.logger.Errorf("Failed to fetch color frame: %v", err)
			} else {
				s.engine.UpdateColor(img)
			}

			if dm, err := s.grabDepth(ctx); err != nil {
				s.logger.Errorf("Failed to fetch depth frame: %v", err)
			} else {
				s.engine.UpdateDepth(dm)
			}

			estimates, err := s.engine.Tick(ctx)
			if err != nil {
				s.logger.Errorf("Fusion tick failed: %v", err)
				continue
			}
			if estimates == nil {
				continue
			}
			s.mu.Lock()
			s.estimates = estimates
			s.mu.Unlock()
			s.logger.Debugf("Fused %d detections", len(estimates))
		}
	}
}

func (s *remoteLocalizer) grabImage(ctx context.Context, sourceName string) (image.Image, error) {
	imgs, _, err := s.cam.Images(ctx, []string{sourceName}, nil)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("no %q image returned from camera", sourceName)
	}
	return imgs[0].Image(ctx)
}

func (s *remoteLocalizer) grabDepth(ctx context.Context) (*fusion.DepthMap, error) {
	img, err := s.grabImage(ctx, s.cfg.DepthSource)
	if err != nil {
		return nil, err
	}
	dm, err := rimage.ConvertImageToDepthMap(ctx, img)
	if err != nil {
		return nil, err
	}
	return fusion.DepthMapFromRimage(dm), nil
}

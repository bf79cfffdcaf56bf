package models

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/vision"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/vision/objectdetection"
)

var DetectionOverlay = resource.NewModel("viam", "rgbd-object-fusion", "detection-overlay")

func init() {
	resource.RegisterComponent(camera.API, DetectionOverlay,
		resource.Registration[camera.Camera, *DetectionOverlayConfig]{
			Constructor: newDetectionOverlay,
		},
	)
}

type DetectionOverlayConfig struct {
	CameraName    string  `json:"camera_name"`
	DetectorName  string  `json:"detector_name"`
	BoxColor      string  `json:"box_color"`      // Color: "red", "green", "blue", "white", "black"
	BoxThickness  int     `json:"box_thickness"`  // Thickness of box edges in pixels
	MinConfidence float64 `json:"min_confidence"` // Detections below this score are not drawn
}

// Validate ensures all parts of the config are valid and important fields exist.
// Returns implicit dependencies based on the config.
func (cfg *DetectionOverlayConfig) Validate(path string) ([]string, []string, error) {
	if cfg.CameraName == "" {
		return nil, nil, errors.New("camera_name is required")
	}
	if cfg.DetectorName == "" {
		return nil, nil, errors.New("detector_name is required")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, nil, errors.New("min_confidence must be between 0 and 1")
	}
	// Set defaults
	if cfg.BoxColor == "" {
		cfg.BoxColor = "green"
	}
	if cfg.BoxThickness == 0 {
		cfg.BoxThickness = 3
	}
	return []string{cfg.CameraName, cfg.DetectorName}, nil, nil
}

type detectionOverlay struct {
	name          resource.Name
	logger        logging.Logger
	cfg           *DetectionOverlayConfig
	cancelCtx     context.Context
	cancelFunc    func()
	underlyingCam camera.Camera
	detector      vision.Service
	scoreFilter   objectdetection.Postprocessor
	boxColor      color.Color
}

func newDetectionOverlay(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (camera.Camera, error) {
	conf, err := resource.NativeConfig[*DetectionOverlayConfig](rawConf)
	if err != nil {
		return nil, err
	}

	cam, err := camera.FromDependencies(deps, conf.CameraName)
	if err != nil {
		return nil, err
	}

	detector, err := vision.FromDependencies(deps, conf.DetectorName)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())

	s := &detectionOverlay{
		name:          rawConf.ResourceName(),
		logger:        logger,
		cfg:           conf,
		cancelCtx:     cancelCtx,
		cancelFunc:    cancelFunc,
		underlyingCam: cam,
		detector:      detector,
		scoreFilter:   objectdetection.NewScoreFilter(conf.MinConfidence),
		boxColor:      parseColor(conf.BoxColor),
	}
	return s, nil
}

func (s *detectionOverlay) Reconfigure(ctx context.Context, deps resource.Dependencies, rawConf resource.Config) error {
	conf, err := resource.NativeConfig[*DetectionOverlayConfig](rawConf)
	if err != nil {
		return err
	}

	cam, err := camera.FromDependencies(deps, conf.CameraName)
	if err != nil {
		return err
	}

	detector, err := vision.FromDependencies(deps, conf.DetectorName)
	if err != nil {
		return err
	}

	s.cfg = conf
	s.underlyingCam = cam
	s.detector = detector
	s.scoreFilter = objectdetection.NewScoreFilter(conf.MinConfidence)
	s.boxColor = parseColor(conf.BoxColor)
	return nil
}

func (s *detectionOverlay) Name() resource.Name {
	return s.name
}

func (s *detectionOverlay) Close(context.Context) error {
	s.cancelFunc()
	return nil
}

func (s *detectionOverlay) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

func (s *detectionOverlay) GetImage(ctx context.Context) (image.Image, error) {
	imgs, _, err := s.underlyingCam.Images(ctx, []string{"color"}, nil)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, errors.New("no images returned from underlying camera")
	}

	img, err := imgs[0].Image(ctx)
	if err != nil {
		return nil, err
	}

	return s.overlay(ctx, img), nil
}

// overlay draws the current detections on the frame. Drawing is best effort:
// a detector failure returns the plain frame rather than dropping it.
func (s *detectionOverlay) overlay(ctx context.Context, img image.Image) image.Image {
	detections, err := s.detector.Detections(ctx, img, nil)
	if err != nil {
		s.logger.Errorf("Failed to get detections for overlay: %v", err)
		return img
	}
	return s.drawDetections(img, s.scoreFilter(detections))
}

// drawDetections draws box borders on a mutable copy of the image.
func (s *detectionOverlay) drawDetections(img image.Image, detections []objectdetection.Detection) image.Image {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	thick := s.cfg.BoxThickness
	for _, det := range detections {
		box := det.BoundingBox()
		if box == nil {
			continue
		}
		r := box.Intersect(bounds)
		if r.Empty() {
			continue
		}

		// Horizontal edges
		for x := r.Min.X; x < r.Max.X; x++ {
			for t := 0; t < thick; t++ {
				setIfInside(rgba, x, r.Min.Y+t, s.boxColor)
				setIfInside(rgba, x, r.Max.Y-1-t, s.boxColor)
			}
		}

		// Vertical edges
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for t := 0; t < thick; t++ {
				setIfInside(rgba, r.Min.X+t, y, s.boxColor)
				setIfInside(rgba, r.Max.X-1-t, y, s.boxColor)
			}
		}
	}

	return rgba
}

func setIfInside(rgba *image.RGBA, x, y int, c color.Color) {
	if image.Pt(x, y).In(rgba.Bounds()) {
		rgba.Set(x, y, c)
	}
}

// parseColor converts color string to color.Color
func parseColor(colorName string) color.Color {
	switch colorName {
	case "red":
		return color.RGBA{R: 255, G: 0, B: 0, A: 255}
	case "green":
		return color.RGBA{R: 0, G: 255, B: 0, A: 255}
	case "blue":
		return color.RGBA{R: 0, G: 0, B: 255, A: 255}
	case "white":
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	case "black":
		return color.RGBA{R: 0, G: 0, B: 0, A: 255}
	case "yellow":
		return color.RGBA{R: 255, G: 255, B: 0, A: 255}
	case "cyan":
		return color.RGBA{R: 0, G: 255, B: 255, A: 255}
	case "magenta":
		return color.RGBA{R: 255, G: 0, B: 255, A: 255}
	default:
		return color.RGBA{R: 0, G: 255, B: 0, A: 255} // Default to green
	}
}

func (s *detectionOverlay) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return nil, nil
}

func (s *detectionOverlay) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	return nil, camera.ImageMetadata{}, nil
}

func (s *detectionOverlay) Images(ctx context.Context, mimeTypes []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	imgs, meta, err := s.underlyingCam.Images(ctx, mimeTypes, extra)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}

	resultImgs := make([]camera.NamedImage, len(imgs))
	for i, namedImg := range imgs {
		img, err := namedImg.Image(ctx)
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}

		drawn := s.overlay(ctx, img)

		resultImg, err := camera.NamedImageFromImage(drawn, namedImg.SourceName, namedImg.MimeType())
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}
		resultImgs[i] = resultImg
	}

	return resultImgs, meta, nil
}

func (s *detectionOverlay) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	return s.underlyingCam.NextPointCloud(ctx, extra)
}

func (s *detectionOverlay) Properties(ctx context.Context) (camera.Properties, error) {
	return s.underlyingCam.Properties(ctx)
}

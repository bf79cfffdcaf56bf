package main

import (
	"context"
	rgbdfusion "rgbdfusion"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	ctx := context.Background()
	logger := logging.NewLogger("cli")

	deps := resource.Dependencies{}
	// the camera and detector come from the machine configured in the env

	cfg := rgbdfusion.Config{
		CameraName:   "rgbd-camera",
		DetectorName: "yolo-detector",
		TickPeriodS:  0.2,
		LabelMap: map[string]string{
			"0": "person",
			"1": "bicycle",
			"2": "car",
		},
		EnableOnStart: true,
	}

	thing, err := rgbdfusion.NewRemoteLocalizer(ctx, deps, genericservice.Named("foo"), &cfg, logger)
	if err != nil {
		return err
	}
	defer thing.Close(ctx)

	return nil
}

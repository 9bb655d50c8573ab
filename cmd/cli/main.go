package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"markerfollower"

	"github.com/erh/vmodutils"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/sensor"
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

	var cameraName, rangeName, leftName, rightName string
	var markerSize float64
	flag.StringVar(&cameraName, "camera", "cam", "camera component name")
	flag.StringVar(&rangeName, "range-sensor", "ultrasonic", "range sensor component name")
	flag.StringVar(&leftName, "left-motor", "left", "left motor component name")
	flag.StringVar(&rightName, "right-motor", "right", "right motor component name")
	flag.Float64Var(&markerSize, "marker-size", 2.5, "marker edge length (cm)")
	flag.Parse()

	machine, err := vmodutils.ConnectToMachineFromEnv(ctx, logger)
	if err != nil {
		return err
	}
	defer machine.Close(ctx)

	deps := resource.Dependencies{}
	for _, n := range []resource.Name{
		camera.Named(cameraName),
		sensor.Named(rangeName),
		motor.Named(leftName),
		motor.Named(rightName),
	} {
		res, err := machine.ResourceByName(n)
		if err != nil {
			return err
		}
		deps[n] = res
	}

	cfg := markerfollower.Config{
		CameraName:      cameraName,
		RangeSensorName: rangeName,
		LeftMotorName:   leftName,
		RightMotorName:  rightName,
		UpdateRateHz:    15.0,
		EnableOnStart:   true,
		Calibration: markerfollower.CalibrationConfig{
			Matrix:     [9]float64{800, 0, 320, 0, 800, 240, 0, 0, 1},
			DistCoeffs: [5]float64{},
			Width:      640,
			Height:     480,
		},
		Marker: markerfollower.MarkerConfig{
			Size: markerSize,
		},
	}
	if _, _, err := cfg.Validate(""); err != nil {
		return err
	}

	svc, err := markerfollower.NewFollowerService(ctx, deps, genericservice.Named("marker-follower"), &cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

package markerfollower

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/sensor"
)

// cameraFrameSource adapts a Viam camera to the FrameSource port.
type cameraFrameSource struct {
	cam camera.Camera
}

func (c *cameraFrameSource) Frame(ctx context.Context) (image.Image, error) {
	imgs, _, err := c.cam.Images(ctx, []string{"color"}, nil)
	if err != nil {
		return nil, err
	}
	if len(imgs) == 0 {
		return nil, errors.New("no images returned from camera")
	}
	return imgs[0].Image(ctx)
}

// sensorRangeFinder adapts a Viam sensor's "distance" reading to the
// obstacle.RangeFinder port. Scale converts the sensor's unit into the unit
// safe_distance is configured in.
type sensorRangeFinder struct {
	sensor sensor.Sensor
	scale  float64
}

func (s *sensorRangeFinder) Distance(ctx context.Context) (float64, error) {
	readings, err := s.sensor.Readings(ctx, nil)
	if err != nil {
		return 0, err
	}
	raw, ok := readings["distance"]
	if !ok {
		return 0, errors.New(`range sensor has no "distance" reading`)
	}
	d, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("distance reading has unexpected type %T", raw)
	}
	return d * s.scale, nil
}

// motorDriveTrain adapts a left/right motor pair to the DriveTrain port.
type motorDriveTrain struct {
	left  motor.Motor
	right motor.Motor
}

func (d *motorDriveTrain) SetSpeeds(ctx context.Context, left, right float64) error {
	if err := d.left.SetPower(ctx, left, nil); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := d.right.SetPower(ctx, right, nil); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	return nil
}

func (d *motorDriveTrain) Stop(ctx context.Context) error {
	leftErr := d.left.Stop(ctx, nil)
	rightErr := d.right.Stop(ctx, nil)
	if leftErr != nil {
		return fmt.Errorf("left motor: %w", leftErr)
	}
	if rightErr != nil {
		return fmt.Errorf("right motor: %w", rightErr)
	}
	return nil
}

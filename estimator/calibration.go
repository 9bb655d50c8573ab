package estimator

import (
	"fmt"

	"github.com/golang/geo/r2"

	"markerfollower/utils"
)

// CalibrationProfile holds the camera intrinsics the estimator works from.
// It is immutable once built; NewCalibrationProfile rejects malformed values
// so per-frame code never has to revalidate.
type CalibrationProfile struct {
	Fx, Fy float64
	Cx, Cy float64
	// Brown-Conrady coefficients, ordered k1, k2, p1, p2, k3.
	Dist   [5]float64
	Width  int
	Height int
}

// NewCalibrationProfile builds a profile from a 3x3 row-major intrinsic
// matrix (pixel units), distortion coefficients and the image resolution.
func NewCalibrationProfile(matrix [9]float64, dist [5]float64, width, height int) (*CalibrationProfile, error) {
	c := &CalibrationProfile{
		Fx: matrix[0], Fy: matrix[4],
		Cx: matrix[2], Cy: matrix[5],
		Dist:  dist,
		Width: width, Height: height,
	}
	if err := utils.ValidatePositive("focal length fx", c.Fx); err != nil {
		return nil, err
	}
	if err := utils.ValidatePositive("focal length fy", c.Fy); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %dx%d", width, height)
	}
	if c.Cx <= 0 || c.Cx >= float64(width) {
		return nil, fmt.Errorf("principal point cx=%v outside image width %d", c.Cx, width)
	}
	if c.Cy <= 0 || c.Cy >= float64(height) {
		return nil, fmt.Errorf("principal point cy=%v outside image height %d", c.Cy, height)
	}
	return c, nil
}

// Undistort maps a distorted pixel coordinate to its corrected position
// using an iterative inverse of the Brown-Conrady model. Five iterations
// are plenty for the mild distortion of a fixed-focus board camera.
func (c *CalibrationProfile) Undistort(pt r2.Point) r2.Point {
	k1, k2, t1, t2, k3 := c.Dist[0], c.Dist[1], c.Dist[2], c.Dist[3], c.Dist[4]
	if k1 == 0 && k2 == 0 && t1 == 0 && t2 == 0 && k3 == 0 {
		return pt
	}

	xd := (pt.X - c.Cx) / c.Fx
	yd := (pt.Y - c.Cy) / c.Fy
	x, y := xd, yd
	for i := 0; i < 5; i++ {
		rr := x*x + y*y
		radial := 1 + k1*rr + k2*rr*rr + k3*rr*rr*rr
		dx := 2*t1*x*y + t2*(rr+2*x*x)
		dy := t1*(rr+2*y*y) + 2*t2*x*y
		x = (xd - dx) / radial
		y = (yd - dy) / radial
	}
	return r2.Point{X: c.Fx*x + c.Cx, Y: c.Fy*y + c.Cy}
}

// Distort applies the forward Brown-Conrady model to a corrected pixel
// coordinate. Used when synthesizing views for calibration checks.
func (c *CalibrationProfile) Distort(pt r2.Point) r2.Point {
	k1, k2, t1, t2, k3 := c.Dist[0], c.Dist[1], c.Dist[2], c.Dist[3], c.Dist[4]
	x := (pt.X - c.Cx) / c.Fx
	y := (pt.Y - c.Cy) / c.Fy
	rr := x*x + y*y
	radial := 1 + k1*rr + k2*rr*rr + k3*rr*rr*rr
	xd := x*radial + 2*t1*x*y + t2*(rr+2*x*x)
	yd := y*radial + t1*(rr+2*y*y) + 2*t2*x*y
	return r2.Point{X: c.Fx*xd + c.Cx, Y: c.Fy*yd + c.Cy}
}

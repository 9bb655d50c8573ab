package estimator

import (
	"testing"

	"github.com/makiuchi-d/gozxing"
)

func TestCornersFromFinderPatterns(t *testing.T) {
	// Axis-aligned marker: finder patterns at bottom-left, top-left,
	// top-right of a 100px square anchored at (200, 100).
	pts := []gozxing.ResultPoint{
		gozxing.NewResultPoint(200, 200),
		gozxing.NewResultPoint(200, 100),
		gozxing.NewResultPoint(300, 100),
	}

	corners := cornersFromFinderPatterns(pts)

	if corners[0].X != 200 || corners[0].Y != 100 {
		t.Fatalf("top-left corner wrong: %+v", corners[0])
	}
	if corners[1].X != 300 || corners[1].Y != 100 {
		t.Fatalf("top-right corner wrong: %+v", corners[1])
	}
	if corners[2].X != 300 || corners[2].Y != 200 {
		t.Fatalf("completed bottom-right corner wrong: %+v", corners[2])
	}
	if corners[3].X != 200 || corners[3].Y != 200 {
		t.Fatalf("bottom-left corner wrong: %+v", corners[3])
	}
}

func TestCornersFromRotatedFinderPatterns(t *testing.T) {
	// 45° rotated marker; the completion must stay a parallelogram.
	pts := []gozxing.ResultPoint{
		gozxing.NewResultPoint(100, 200),
		gozxing.NewResultPoint(150, 150),
		gozxing.NewResultPoint(200, 200),
	}

	corners := cornersFromFinderPatterns(pts)

	if corners[2].X != 150 || corners[2].Y != 250 {
		t.Fatalf("expected bottom-right (150, 250), got %+v", corners[2])
	}
}

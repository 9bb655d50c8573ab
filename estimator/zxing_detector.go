package estimator

import (
	"context"
	"image"

	"github.com/golang/geo/r2"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	"github.com/makiuchi-d/gozxing/multi/qrcode"
)

// ZXingDetector decodes QR markers from camera frames. A frame with no
// decodable marker yields an empty slice, not an error.
type ZXingDetector struct {
	reader     multi.MultipleBarcodeReader
	markerSize float64
	hints      map[gozxing.DecodeHintType]interface{}
}

func NewZXingDetector(markerSize float64) *ZXingDetector {
	return &ZXingDetector{
		reader:     qrcode.NewQRCodeMultiReader(),
		markerSize: markerSize,
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *ZXingDetector) Detect(ctx context.Context, frame image.Image) ([]MarkerObservation, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return nil, err
	}

	results, err := d.reader.DecodeMultiple(bmp, d.hints)
	if err != nil {
		if _, ok := err.(gozxing.NotFoundException); ok {
			return nil, nil
		}
		return nil, err
	}

	obs := make([]MarkerObservation, 0, len(results))
	for _, res := range results {
		pts := res.GetResultPoints()
		if res.GetText() == "" || len(pts) < 3 {
			continue
		}
		obs = append(obs, MarkerObservation{
			Code:     res.GetText(),
			Corners:  cornersFromFinderPatterns(pts),
			RealSize: d.markerSize,
		})
	}
	return obs, nil
}

// cornersFromFinderPatterns completes a corner quad from ZXing's result
// points, reported bottom-left, top-left, top-right. The missing fourth
// corner is the parallelogram completion.
func cornersFromFinderPatterns(pts []gozxing.ResultPoint) [4]r2.Point {
	bl := r2.Point{X: pts[0].GetX(), Y: pts[0].GetY()}
	tl := r2.Point{X: pts[1].GetX(), Y: pts[1].GetY()}
	tr := r2.Point{X: pts[2].GetX(), Y: pts[2].GetY()}
	br := tr.Add(bl.Sub(tl))
	return [4]r2.Point{tl, tr, br, bl}
}

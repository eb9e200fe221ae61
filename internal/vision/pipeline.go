// Package vision turns camera frames into positional error measurements
// using HSV color segmentation, and produces the annotated frame and debug
// mask consumed by the dashboard.
package vision

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"lasergimbal/internal/model"
)

var (
	colorTarget = color.RGBA{0, 0, 255, 0}
	colorLaser  = color.RGBA{255, 0, 0, 0}
	colorVector = color.RGBA{0, 255, 0, 0}
)

// Detection is the outcome of processing one frame. Found reports whether
// an error measurement exists; frames without one must not feed the control
// loop. Locked is set by the centering variant when the target sits inside
// the pixel deadzone around the frame center.
type Detection struct {
	ErrX, ErrY int
	Found      bool
	Locked     bool
}

// Pipeline runs the color segmentation algorithms. It owns the morphology
// kernel; Close releases it.
type Pipeline struct {
	cfg    model.VisionConfig
	kernel gocv.Mat
}

// NewPipeline builds a pipeline for the given vision configuration.
func NewPipeline(cfg model.VisionConfig) *Pipeline {
	k := cfg.KernelSize
	if k < 1 {
		k = 1
	}
	return &Pipeline{
		cfg:    cfg,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k)),
	}
}

// Close releases the pipeline's native resources.
func (p *Pipeline) Close() {
	p.kernel.Close()
}

func hsvScalar(h model.HSV) gocv.Scalar {
	return gocv.NewScalar(h.H, h.S, h.V, 0)
}

// maskRange builds a denoised binary mask for one HSV window: threshold,
// then opening to drop speckle and closing to fill small holes.
func (p *Pipeline) maskRange(hsv gocv.Mat, r model.HSVRange, dst *gocv.Mat) {
	gocv.InRangeWithScalar(hsv, hsvScalar(r.Lower), hsvScalar(r.Upper), dst)
	gocv.MorphologyEx(*dst, dst, gocv.MorphOpen, p.kernel)
	gocv.MorphologyEx(*dst, dst, gocv.MorphClose, p.kernel)
}

// largestBlob finds the biggest external contour in the mask and returns
// its minimum enclosing circle, or ok=false when no contour clears minArea.
func largestBlob(mask gocv.Mat, minArea float64) (center image.Point, radius float64, ok bool) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > bestArea {
			bestArea = a
			best = i
		}
	}
	if best < 0 || bestArea <= minArea {
		return image.Point{}, 0, false
	}
	x, y, r := gocv.MinEnclosingCircle(contours.At(best))
	return image.Pt(int(x), int(y)), float64(r), true
}

// ProcessTracking runs the laser-chases-target variant: the error is the
// vector from the laser dot to the target blob. Annotations are drawn onto
// frame in place; the returned Mat is the combined debug mask and must be
// closed by the caller.
//
// The error exists only when both colors are found. A frame with just the
// target (laser out of view or occluded) yields no measurement; emitting a
// stale or zero error instead would fight the watchdog.
func (p *Pipeline) ProcessTracking(frame *gocv.Mat) (Detection, gocv.Mat) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	maskTarget := gocv.NewMat()
	defer maskTarget.Close()
	p.maskRange(hsv, p.cfg.TargetRange, &maskTarget)

	// The laser hue wraps around 0/180, union of two windows.
	maskLaser := gocv.NewMat()
	defer maskLaser.Close()
	mask2 := gocv.NewMat()
	defer mask2.Close()
	p.maskRange(hsv, p.cfg.LaserRange1, &maskLaser)
	p.maskRange(hsv, p.cfg.LaserRange2, &mask2)
	gocv.BitwiseOr(maskLaser, mask2, &maskLaser)

	debugMask := gocv.NewMat()
	gocv.BitwiseOr(maskTarget, maskLaser, &debugMask)

	targetPos, targetR, targetOK := largestBlob(maskTarget, p.cfg.MinTargetArea)
	laserPos, _, laserOK := largestBlob(maskLaser, p.cfg.MinLaserArea)

	if targetOK {
		gocv.Circle(frame, targetPos, int(targetR), colorTarget, 2)
		gocv.PutText(frame, "Target", image.Pt(targetPos.X-10, targetPos.Y-10),
			gocv.FontHersheySimplex, 0.5, colorTarget, 2)
	}
	if laserOK {
		gocv.Circle(frame, laserPos, 5, colorLaser, -1)
	}

	if !targetOK || !laserOK {
		return Detection{}, debugMask
	}

	gocv.ArrowedLine(frame, laserPos, targetPos, colorVector, 2)
	return Detection{
		ErrX:  targetPos.X - laserPos.X,
		ErrY:  targetPos.Y - laserPos.Y,
		Found: true,
	}, debugMask
}

// centeringScale attenuates the raw centering error so far targets are
// approached gently and near targets precisely.
func (p *Pipeline) centeringScale(magnitude float64) float64 {
	switch {
	case magnitude > p.cfg.ScaleFarThreshold:
		return p.cfg.ScaleFar
	case magnitude > p.cfg.ScaleMidThreshold:
		return p.cfg.ScaleMid
	default:
		return p.cfg.ScaleNear
	}
}

// ProcessCentering runs the target-centering variant: the error is the
// offset of the target blob from the frame center, deadzoned and scaled.
// The returned Mat is the target mask and must be closed by the caller.
func (p *Pipeline) ProcessCentering(frame *gocv.Mat) (Detection, gocv.Mat) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	p.maskRange(hsv, p.cfg.TargetRange, &mask)

	targetPos, targetR, ok := largestBlob(mask, p.cfg.MinTargetArea)
	if !ok {
		return Detection{}, mask
	}

	center := image.Pt(p.cfg.CenterX, p.cfg.CenterY)
	gocv.Circle(frame, targetPos, int(targetR), colorTarget, 2)
	gocv.Line(frame, center, targetPos, colorVector, 1)

	rawX := targetPos.X - center.X
	rawY := targetPos.Y - center.Y
	if math.Abs(float64(rawX)) < p.cfg.CenterDeadzone && math.Abs(float64(rawY)) < p.cfg.CenterDeadzone {
		return Detection{Found: true, Locked: true}, mask
	}

	scale := p.centeringScale(math.Hypot(float64(rawX), float64(rawY)))
	return Detection{
		ErrX:  int(float64(rawX) * scale),
		ErrY:  int(float64(rawY) * scale),
		Found: true,
	}, mask
}

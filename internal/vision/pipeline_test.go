package vision

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"lasergimbal/internal/model"
)

// blankFrame returns a black 640x480 BGR frame.
func blankFrame() gocv.Mat {
	return gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
}

// paintTarget draws a filled blue square (BGR 255,0,0) centered at (x, y).
func paintTarget(frame *gocv.Mat, x, y, half int) {
	gocv.Rectangle(frame, image.Rect(x-half, y-half, x+half, y+half), color.RGBA{0, 0, 255, 0}, -1)
}

// paintLaser draws a small filled red dot (BGR 0,0,255) at (x, y).
func paintLaser(frame *gocv.Mat, x, y int) {
	gocv.Circle(frame, image.Pt(x, y), 4, color.RGBA{255, 0, 0, 0}, -1)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestTrackingErrorVector(t *testing.T) {
	frame := blankFrame()
	defer frame.Close()
	paintTarget(&frame, 415, 315, 15)
	paintLaser(&frame, 200, 150)

	p := NewPipeline(model.Default().Vision)
	defer p.Close()

	det, mask := p.ProcessTracking(&frame)
	defer mask.Close()

	if !det.Found {
		t.Fatal("target+laser frame produced no detection")
	}
	// Blob centers are circle-fit estimates, allow a few pixels.
	if absInt(det.ErrX-215) > 3 || absInt(det.ErrY-165) > 3 {
		t.Errorf("error = (%d, %d), want about (215, 165)", det.ErrX, det.ErrY)
	}
}

func TestTrackingTargetOnlyYieldsNothing(t *testing.T) {
	frame := blankFrame()
	defer frame.Close()
	paintTarget(&frame, 320, 240, 15)

	p := NewPipeline(model.Default().Vision)
	defer p.Close()

	det, mask := p.ProcessTracking(&frame)
	defer mask.Close()

	if det.Found {
		t.Errorf("laser-less frame produced detection %+v", det)
	}
}

func TestTrackingEmptyFrameYieldsNothing(t *testing.T) {
	frame := blankFrame()
	defer frame.Close()

	p := NewPipeline(model.Default().Vision)
	defer p.Close()

	det, mask := p.ProcessTracking(&frame)
	defer mask.Close()

	if det.Found {
		t.Errorf("empty frame produced detection %+v", det)
	}
}

func TestTrackingIgnoresSmallTarget(t *testing.T) {
	frame := blankFrame()
	defer frame.Close()
	// A 6x6 blob is under the 100 px^2 target minimum but would pass the
	// laser minimum; it must not count as a target.
	paintTarget(&frame, 320, 240, 3)
	paintLaser(&frame, 100, 100)

	p := NewPipeline(model.Default().Vision)
	defer p.Close()

	det, mask := p.ProcessTracking(&frame)
	defer mask.Close()

	if det.Found {
		t.Errorf("sub-minimum target produced detection %+v", det)
	}
}

func TestCenteringLockedInsideDeadzone(t *testing.T) {
	frame := blankFrame()
	defer frame.Close()
	paintTarget(&frame, 325, 244, 15) // 5, 4 px off center, inside 15 px deadzone

	p := NewPipeline(model.Default().Vision)
	defer p.Close()

	det, mask := p.ProcessCentering(&frame)
	defer mask.Close()

	if !det.Found || !det.Locked {
		t.Fatalf("detection = %+v, want found and locked", det)
	}
	if det.ErrX != 0 || det.ErrY != 0 {
		t.Errorf("locked error = (%d, %d), want (0, 0)", det.ErrX, det.ErrY)
	}
}

func TestCenteringScalesByMagnitude(t *testing.T) {
	cases := []struct {
		x, y      int
		scale     float64
		tolerance int
	}{
		{500, 240, 0.40, 4}, // 180 px out: far tier
		{430, 240, 0.55, 4}, // 110 px out: mid tier
		{370, 240, 0.65, 4}, // 50 px out: near tier
	}
	p := NewPipeline(model.Default().Vision)
	defer p.Close()

	for _, c := range cases {
		frame := blankFrame()
		paintTarget(&frame, c.x, c.y, 15)

		det, mask := p.ProcessCentering(&frame)
		if !det.Found || det.Locked {
			t.Errorf("target at (%d, %d): detection = %+v", c.x, c.y, det)
		}
		want := int(float64(c.x-320) * c.scale)
		if absInt(det.ErrX-want) > c.tolerance {
			t.Errorf("target at (%d, %d): errX = %d, want about %d", c.x, c.y, det.ErrX, want)
		}
		mask.Close()
		frame.Close()
	}
}

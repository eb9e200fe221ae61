package vision

import (
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"lasergimbal/internal/event"
	"lasergimbal/internal/model"
)

// ErrorSink receives one raw error sample per processed frame. The
// orchestrator's HandleVisionError satisfies it.
type ErrorSink func(errX, errY int)

// Worker owns the camera for its lifetime and runs the capture loop: read a
// frame, process it according to the current mode, publish the error sample
// and the display artifacts. Frame pacing comes from the camera; the control
// loop runs on its own clock and only sees the filtered error cell.
type Worker struct {
	cfg    model.VisionConfig
	events *event.Broadcaster
	sink   ErrorSink

	mu        sync.Mutex
	mode      model.TrackingMode
	frameJPEG []byte
	maskJPEG  []byte

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWorker constructs a vision worker delivering error samples to sink.
func NewWorker(cfg model.VisionConfig, events *event.Broadcaster, sink ErrorSink) *Worker {
	return &Worker{
		cfg:    cfg,
		events: events,
		sink:   sink,
		mode:   model.ModeIdle,
		stop:   make(chan struct{}),
	}
}

// SetMode switches the active algorithm. Takes effect on the next frame.
func (w *Worker) SetMode(mode model.TrackingMode) {
	w.mu.Lock()
	w.mode = mode
	w.mu.Unlock()
	log.Printf("[vision] mode: %s", mode)
	w.events.Status("vision mode: " + string(mode))
}

// Mode returns the currently active tracking mode.
func (w *Worker) Mode() model.TrackingMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Frame returns the latest annotated frame as JPEG, or nil before the first
// frame. Lossy by design; the dashboard only wants the newest image.
func (w *Worker) Frame() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frameJPEG
}

// Mask returns the latest debug mask as JPEG, or nil.
func (w *Worker) Mask() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maskJPEG
}

// Start opens the camera and launches the capture loop goroutine.
func (w *Worker) Start() error {
	cam, err := gocv.VideoCaptureDevice(w.cfg.CameraID)
	if err != nil {
		return err
	}
	cam.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.FrameWidth))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.FrameHeight))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cam.Close()
		w.run(cam)
	}()
	return nil
}

// Stop terminates the capture loop and waits for the camera to be released.
func (w *Worker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	w.wg.Wait()
}

func (w *Worker) run(cam *gocv.VideoCapture) {
	pipeline := NewPipeline(w.cfg)
	defer pipeline.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	readFails := 0
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		if ok := cam.Read(&frame); !ok || frame.Empty() {
			readFails++
			if readFails <= 3 || readFails%100 == 0 {
				log.Printf("[vision] frame read failed (%d)", readFails)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		readFails = 0

		w.processFrame(pipeline, &frame)
	}
}

// processFrame dispatches one frame to the active algorithm. A panic inside
// the native pipeline must cost at most this frame, never the loop.
func (w *Worker) processFrame(pipeline *Pipeline, frame *gocv.Mat) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[vision] frame skipped after processing panic: %v", r)
		}
	}()

	switch w.Mode() {
	case model.ModeTracking:
		det, mask := pipeline.ProcessTracking(frame)
		w.publishMask(mask)
		mask.Close()
		if det.Found {
			w.sink(det.ErrX, det.ErrY)
		}
	case model.ModeBlueCentering:
		det, mask := pipeline.ProcessCentering(frame)
		w.publishMask(mask)
		mask.Close()
		if det.Found {
			// A locked detection is a genuine zero error, keep the
			// watchdog fed.
			w.sink(det.ErrX, det.ErrY)
		}
	default:
		// Idle and Test run no algorithm but still show the raw camera view.
	}

	w.publishFrame(*frame)
}

func (w *Worker) publishFrame(frame gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		log.Printf("[vision] frame encode failed: %v", err)
		return
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())

	w.mu.Lock()
	w.frameJPEG = jpeg
	w.mu.Unlock()
}

func (w *Worker) publishMask(mask gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mask)
	if err != nil {
		log.Printf("[vision] mask encode failed: %v", err)
		return
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())

	w.mu.Lock()
	w.maskJPEG = jpeg
	w.mu.Unlock()
}

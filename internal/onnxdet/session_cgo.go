//go:build cgo

package onnxdet

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/logging"
)

// AcquireTimeout bounds how long Detect waits for a free session.
const AcquireTimeout = 5 * time.Second

var (
	envOnce sync.Once
	envErr  error
)

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

type modelSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (m *modelSession) destroy() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}

// Detector is a detection.ObjectDetector backed by a pool of ONNX Runtime
// sessions.
type Detector struct {
	sessions chan *modelSession
	size     int
	decoder  Decoder
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
}

var _ detection.ObjectDetector = (*Detector)(nil)

// New loads the model into opts.Sessions sessions.
func New(opts Options) (*Detector, error) {
	if opts.ModelPath == "" {
		return nil, detection.NewDetectorUnavailableError("onnx", errors.New("no model path configured"))
	}
	if opts.InputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", opts.InputSize)
	}
	if len(opts.Labels) == 0 {
		opts.Labels = COCOLabels
	}
	if opts.Sessions <= 0 {
		opts.Sessions = 1
	}
	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, detection.NewDetectorUnavailableError("onnx", err)
	}

	d := &Detector{
		sessions: make(chan *modelSession, opts.Sessions),
		size:     opts.InputSize,
		decoder: Decoder{
			Labels: opts.Labels,
			Width:  opts.InputSize,
			Height: opts.InputSize,
			IOU:    opts.IOU,
		},
		log: logging.Component("onnx"),
	}
	for i := 0; i < opts.Sessions; i++ {
		s, err := newSession(opts)
		if err != nil {
			d.Close()
			return nil, detection.NewDetectorUnavailableError("onnx", fmt.Errorf("session %d: %w", i, err))
		}
		d.sessions <- s
	}

	d.log.Info().
		Str("model", opts.ModelPath).
		Int("input_size", opts.InputSize).
		Int("classes", len(opts.Labels)).
		Int("sessions", opts.Sessions).
		Msg("onnx detector ready")
	return d, nil
}

func newSession(opts Options) (*modelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(opts.InputSize), int64(opts.InputSize)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(opts.Labels)), int64(AnchorCount(opts.InputSize))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return &modelSession{session: session, input: input, output: output}, nil
}

// InputSize returns the square model input size.
func (d *Detector) InputSize() (int, int) {
	return d.size, d.size
}

// Detect runs the model on an image already letterboxed to InputSize.
func (d *Detector) Detect(ctx context.Context, img image.Image, minConfidence float64) ([]detection.RawDetection, error) {
	if got := img.Bounds().Size(); got.X != d.size || got.Y != d.size {
		return nil, fmt.Errorf("input is %dx%d, model expects %dx%d", got.X, got.Y, d.size, d.size)
	}

	s, err := d.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer d.release(s)

	if err := FillTensor(s.input.GetData(), img); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	out, err := d.decoder.Decode(s.output.GetData(), minConfidence)
	if err != nil {
		return nil, fmt.Errorf("process predictions: %w", err)
	}
	d.log.Trace().Dur("inference", time.Since(start)).Int("boxes", len(out)).Msg("inference done")
	return out, nil
}

func (d *Detector) acquire(ctx context.Context) (*modelSession, error) {
	timer := time.NewTimer(AcquireTimeout)
	defer timer.Stop()
	select {
	case s, ok := <-d.sessions:
		if !ok {
			return nil, errors.New("detector is closed")
		}
		return s, nil
	case <-timer.C:
		return nil, errors.New("timeout waiting for available session")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Detector) release(s *modelSession) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		s.destroy()
		return
	}
	d.sessions <- s
}

// Close destroys idle sessions. Sessions still in use are destroyed when
// released.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.sessions)
	for s := range d.sessions {
		s.destroy()
	}
}

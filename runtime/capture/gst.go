package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	pkgerrors "github.com/deskpilot/deskpilot/pkg/errors"
	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/media"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// startTimeout bounds how long Start waits for the pipeline to reach PLAYING.
const startTimeout = 5 * time.Second

var initOnce sync.Once

// gstGrabber pulls RGB frames from a GStreamer appsink.
type gstGrabber struct {
	name     string
	cfg      Config
	pipeline *gst.Pipeline
	sink     *app.Sink

	mu     sync.Mutex
	closed bool
	frames uint64
}

// NewCamera opens the camera named by cfg.Device.
func NewCamera(cfg Config) (Grabber, error) {
	g, err := newGrabber("camera", cfg, cameraElements(cfg.Device))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.ComponentCapture, "OpenCamera", err).
			WithDetails(map[string]any{"device": cfg.Device})
	}
	return g, nil
}

// NewScreen opens a capture of the primary screen.
func NewScreen(cfg Config) (Grabber, error) {
	specs, err := screenElements()
	if err == nil {
		var g *gstGrabber
		if g, err = newGrabber("screen", cfg, specs); err == nil {
			return g, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.ComponentCapture, "OpenScreen", err)
}

func newGrabber(name string, cfg Config, specs []elementSpec) (*gstGrabber, error) {
	initOnce.Do(func() { gst.Init(nil) })

	pipeline, sink, err := buildPipeline(specs)
	if err != nil {
		return nil, err
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("failed to start %s pipeline: %w", name, err)
	}
	if err := waitForStart(pipeline); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, err
	}

	logger.Info("Capture started", "source", name, "element", specs[0].factory)
	return &gstGrabber{name: name, cfg: cfg, pipeline: pipeline, sink: sink}, nil
}

func buildPipeline(specs []elementSpec) (*gst.Pipeline, *app.Sink, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	elements := make([]*gst.Element, 0, len(specs)+1)
	for _, spec := range specs {
		elem, err := gst.NewElement(spec.factory)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s: %w", spec.factory, err)
		}
		for key, value := range spec.props {
			if s, ok := value.(string); ok && key == "caps" {
				value = gst.NewCapsFromString(s)
			}
			if err := elem.SetProperty(key, value); err != nil {
				return nil, nil, fmt.Errorf("failed to set %s.%s: %w", spec.factory, key, err)
			}
		}
		elements = append(elements, elem)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1) // keep only the latest frame
	sink.SetProperty("drop", true)
	elements = append(elements, sink.Element)

	if err := pipeline.AddMany(elements...); err != nil {
		return nil, nil, fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(elements...); err != nil {
		return nil, nil, fmt.Errorf("failed to link elements: %w", err)
	}
	return pipeline, sink, nil
}

// waitForStart surfaces device errors raised while the pipeline prerolls.
func waitForStart(pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(startTimeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			return classify(msg.ParseError())
		case gst.MessageStateChanged:
			if msg.Source() != pipeline.GetName() {
				continue
			}
			if _, state := msg.ParseStateChanged(); state == gst.StatePlaying {
				return nil
			}
		}
	}
	logger.Warn("Capture pipeline did not report PLAYING in time, continuing", "timeout", startTimeout)
	return nil
}

// Grab pulls the latest frame and encodes it as JPEG.
func (g *gstGrabber) Grab(ctx context.Context) (types.MediaChunk, error) {
	if err := ctx.Err(); err != nil {
		return types.MediaChunk{}, err
	}
	if g.isClosed() {
		return types.MediaChunk{}, ErrEndOfStream
	}

	sample := g.sink.PullSample()
	if sample == nil {
		if g.isClosed() || g.sink.IsEOS() {
			return types.MediaChunk{}, ErrEndOfStream
		}
		return types.MediaChunk{}, g.busError()
	}

	width, height, err := sampleDimensions(sample)
	if err != nil {
		return types.MediaChunk{}, err
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return types.MediaChunk{}, fmt.Errorf("%s: sample without buffer", g.name)
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	stride, err := frameSize(len(data), width, height)
	if err != nil {
		buffer.Unmap()
		return types.MediaChunk{}, fmt.Errorf("%s: %w", g.name, err)
	}
	// FromRGB copies out of the mapped memory.
	img, err := media.FromRGB(data, width, height, stride)
	buffer.Unmap()
	if err != nil {
		return types.MediaChunk{}, fmt.Errorf("%s: %w", g.name, err)
	}

	jpeg, err := media.EncodeFrame(img, g.cfg.Frame)
	if err != nil {
		return types.MediaChunk{}, fmt.Errorf("%s: %w", g.name, err)
	}

	g.mu.Lock()
	g.frames++
	g.mu.Unlock()
	return types.NewImageChunk(jpeg), nil
}

func sampleDimensions(sample *gst.Sample) (int, int, error) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, errors.New("sample without caps")
	}
	structure := caps.GetStructureAt(0)
	w, werr := structure.GetValue("width")
	h, herr := structure.GetValue("height")
	if werr != nil || herr != nil {
		return 0, 0, fmt.Errorf("caps without dimensions: %s", caps.String())
	}
	width, ok1 := intValue(w)
	height, ok2 := intValue(h)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("caps with non-integer dimensions: %s", caps.String())
	}
	return width, height, nil
}

// busError returns the pending pipeline error, or ErrEndOfStream.
func (g *gstGrabber) busError() error {
	msg := g.pipeline.GetPipelineBus().TimedPop(0)
	for msg != nil {
		switch msg.Type() {
		case gst.MessageError:
			return classify(msg.ParseError())
		case gst.MessageEOS:
			return ErrEndOfStream
		}
		msg = g.pipeline.GetPipelineBus().TimedPop(0)
	}
	return ErrEndOfStream
}

func (g *gstGrabber) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close stops the pipeline. A Grab blocked in the appsink returns ErrEndOfStream.
func (g *gstGrabber) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	frames := g.frames
	g.mu.Unlock()

	logger.Info("Capture stopped", "source", g.name, "frames", frames)
	if err := g.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to stop %s pipeline: %w", g.name, err)
	}
	return nil
}

// DeviceError is a pipeline error reported by GStreamer.
type DeviceError struct {
	Category string
	Message  string
	Debug    string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device error (%s): %s", e.Category, e.Message)
}

func classify(gerr *gst.GError) error {
	if gerr == nil {
		return &DeviceError{Category: categoryUnknown, Message: "unknown pipeline error"}
	}
	err := &DeviceError{
		Category: classifyMessage(gerr.Error(), gerr.DebugString()),
		Message:  gerr.Error(),
		Debug:    gerr.DebugString(),
	}
	logger.Error("Capture pipeline error", "category", err.Category, "error", err.Message, "debug", err.Debug)
	return err
}

// Error categories for DeviceError.
const (
	categoryPermission = "permission"
	categoryDevice     = "device"
	categoryFormat     = "format"
	categoryUnknown    = "unknown"
)

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{categoryPermission, []string{"permission", "not authorized", "access denied", "denied", "eacces"}},
	{categoryDevice, []string{"no such device", "cannot identify device", "busy", "could not open", "not found", "display"}},
	{categoryFormat, []string{"not negotiated", "negotiation", "caps", "format", "missing plugin"}},
}

// classifyMessage groups a GStreamer error by message heuristics; GError
// carries no stable domain code.
func classifyMessage(msg, debug string) string {
	combined := strings.ToLower(msg + " " + debug)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(combined, kw) {
				return c.category
			}
		}
	}
	return categoryUnknown
}

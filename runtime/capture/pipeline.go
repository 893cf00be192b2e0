package capture

import (
	"fmt"
	"runtime"
)

// rgbCaps pins the appsink input to packed 8-bit RGB.
const rgbCaps = "video/x-raw,format=RGB"

// elementSpec describes one pipeline element before it is created.
type elementSpec struct {
	factory string
	props   map[string]any
}

// cameraSource returns the platform camera source element.
func cameraSource(goos, device string) elementSpec {
	switch goos {
	case "linux":
		src := elementSpec{factory: "v4l2src", props: map[string]any{}}
		if device != "" {
			src.props["device"] = device
		}
		return src
	case "windows":
		return elementSpec{factory: "mfvideosrc"}
	case "darwin":
		return elementSpec{factory: "avfvideosrc"}
	default:
		return elementSpec{factory: "autovideosrc"}
	}
}

// screenSource returns the platform screen capture element.
func screenSource(goos string) (elementSpec, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return elementSpec{factory: "ximagesrc", props: map[string]any{
			"use-damage":   false,
			"show-pointer": true,
		}}, nil
	case "windows":
		return elementSpec{factory: "d3d11screencapturesrc", props: map[string]any{
			"show-cursor": true,
		}}, nil
	case "darwin":
		return elementSpec{factory: "avfvideosrc", props: map[string]any{
			"capture-screen":        true,
			"capture-screen-cursor": true,
		}}, nil
	default:
		return elementSpec{}, fmt.Errorf("screen capture is not supported on %s", goos)
	}
}

// convertChain is the source-independent tail: convert to RGB and hand the
// latest frame to the appsink.
func convertChain() []elementSpec {
	return []elementSpec{
		{factory: "videoconvert"},
		{factory: "capsfilter", props: map[string]any{"caps": rgbCaps}},
	}
}

func cameraElements(device string) []elementSpec {
	return append([]elementSpec{cameraSource(runtime.GOOS, device)}, convertChain()...)
}

func screenElements() ([]elementSpec, error) {
	src, err := screenSource(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	return append([]elementSpec{src}, convertChain()...), nil
}

// rgbStride is the row length of a packed RGB buffer. GStreamer pads each
// row to a multiple of four bytes.
func rgbStride(width int) int {
	return (width*3 + 3) &^ 3
}

// frameSize checks that a buffer of n bytes can hold a width x height RGB
// frame and returns the stride to read it with.
func frameSize(n, width, height int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	stride := rgbStride(width)
	if n >= stride*height {
		return stride, nil
	}
	// Some sources deliver unpadded rows.
	if n >= width*3*height {
		return width * 3, nil
	}
	return 0, fmt.Errorf("short frame: %d bytes for %dx%d", n, width, height)
}

// intValue converts a caps field value to int.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

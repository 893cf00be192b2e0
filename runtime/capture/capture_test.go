package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"camera", ModeCamera, false},
		{"screen", ModeScreen, false},
		{"none", ModeNone, false},
		{" Screen ", ModeScreen, false},
		{"", ModeScreen, false},
		{"webcam", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "camera, screen, none")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_NoneHasNoGrabber(t *testing.T) {
	g, err := New(ModeNone, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = New(Mode("bogus"), DefaultConfig())
	assert.Error(t, err)
}

func TestCameraSource(t *testing.T) {
	src := cameraSource("linux", "/dev/video2")
	assert.Equal(t, "v4l2src", src.factory)
	assert.Equal(t, "/dev/video2", src.props["device"])

	src = cameraSource("linux", "")
	assert.NotContains(t, src.props, "device")

	assert.Equal(t, "mfvideosrc", cameraSource("windows", "").factory)
	assert.Equal(t, "avfvideosrc", cameraSource("darwin", "").factory)
	assert.Equal(t, "autovideosrc", cameraSource("plan9", "").factory)
}

func TestScreenSource(t *testing.T) {
	src, err := screenSource("linux")
	require.NoError(t, err)
	assert.Equal(t, "ximagesrc", src.factory)

	src, err = screenSource("windows")
	require.NoError(t, err)
	assert.Equal(t, "d3d11screencapturesrc", src.factory)

	src, err = screenSource("darwin")
	require.NoError(t, err)
	assert.Equal(t, true, src.props["capture-screen"])

	_, err = screenSource("plan9")
	assert.Error(t, err)
}

func TestConvertChainEndsWithRGBCaps(t *testing.T) {
	chain := convertChain()
	require.Len(t, chain, 2)
	assert.Equal(t, "videoconvert", chain[0].factory)
	assert.Equal(t, rgbCaps, chain[1].props["caps"])
}

func TestRGBStride(t *testing.T) {
	assert.Equal(t, 12, rgbStride(4))
	assert.Equal(t, 4, rgbStride(1))
	assert.Equal(t, 8, rgbStride(2))
	assert.Equal(t, 5760, rgbStride(1920))
}

func TestFrameSize(t *testing.T) {
	// padded rows
	stride, err := frameSize(8*3, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, stride)

	// tightly packed rows
	stride, err = frameSize(6*3, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, stride)

	_, err = frameSize(10, 2, 3)
	assert.ErrorContains(t, err, "short frame")

	_, err = frameSize(100, 0, 3)
	assert.ErrorContains(t, err, "invalid frame dimensions")
}

func TestIntValue(t *testing.T) {
	for _, v := range []any{int(7), int32(7), int64(7), uint(7), uint32(7), uint64(7)} {
		got, ok := intValue(v)
		assert.True(t, ok)
		assert.Equal(t, 7, got)
	}
	_, ok := intValue("7")
	assert.False(t, ok)
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg, debug string
		want       string
	}{
		{"Could not open device '/dev/video0' for reading", "", categoryDevice},
		{"Permission denied", "", categoryPermission},
		{"Internal data stream error.", "streaming stopped, reason not-negotiated (-4): not negotiated", categoryFormat},
		{"Cannot open display", "", categoryDevice},
		{"something odd", "", categoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyMessage(tt.msg, tt.debug))
		})
	}
}

func TestDeviceErrorMessage(t *testing.T) {
	err := &DeviceError{Category: categoryDevice, Message: "busy"}
	assert.Equal(t, "capture device error (device): busy", err.Error())
}

package audio

import (
	"encoding/binary"
	"testing"
)

func TestResamplePCM16_SameRate(t *testing.T) {
	// Create a simple sine wave pattern
	input := make([]byte, 100)
	for i := 0; i < 50; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*100))
	}

	output, err := ResamplePCM16(input, 16000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(output) != len(input) {
		t.Errorf("expected output length %d, got %d", len(input), len(output))
	}
}

func TestResamplePCM16_Downsample(t *testing.T) {
	// 24kHz to 16kHz should reduce samples by 2/3
	// 100 samples at 24kHz -> ~67 samples at 16kHz
	numInputSamples := 100
	input := make([]byte, numInputSamples*2)
	for i := 0; i < numInputSamples; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*100))
	}

	output, err := ResamplePCM16(input, 24000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSamples := int(float64(numInputSamples) * 16000 / 24000)
	actualSamples := len(output) / 2
	if actualSamples != expectedSamples {
		t.Errorf("expected %d output samples, got %d", expectedSamples, actualSamples)
	}
}

func TestResamplePCM16_Upsample(t *testing.T) {
	// 16kHz to 24kHz should increase samples by 3/2
	// 100 samples at 16kHz -> 150 samples at 24kHz
	numInputSamples := 100
	input := make([]byte, numInputSamples*2)
	for i := 0; i < numInputSamples; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*100))
	}

	output, err := ResamplePCM16(input, 16000, 24000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSamples := int(float64(numInputSamples) * 24000 / 16000)
	actualSamples := len(output) / 2
	if actualSamples != expectedSamples {
		t.Errorf("expected %d output samples, got %d", expectedSamples, actualSamples)
	}
}

func TestResamplePCM16_InvalidInput(t *testing.T) {
	// Odd number of bytes should error
	input := make([]byte, 101)
	_, err := ResamplePCM16(input, 24000, 16000)
	if err == nil {
		t.Error("expected error for odd byte count")
	}
}

func TestResamplePCM16_InvalidRates(t *testing.T) {
	input := make([]byte, 100)

	_, err := ResamplePCM16(input, 0, 16000)
	if err == nil {
		t.Error("expected error for zero from rate")
	}

	_, err = ResamplePCM16(input, 16000, 0)
	if err == nil {
		t.Error("expected error for zero to rate")
	}
}

func TestResamplePCM16_SpeechToDeviceRate(t *testing.T) {
	// 240 samples at 24kHz = 10ms, 480 samples at 48kHz
	numInputSamples := 240
	input := make([]byte, numInputSamples*2)
	for i := 0; i < numInputSamples; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*10))
	}

	output, err := ResamplePCM16(input, SampleRate24kHz, SampleRate48kHz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(output) / 2; got != 480 {
		t.Errorf("expected 480 output samples, got %d", got)
	}
}

func TestInt16BytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	b := Int16ToBytes(samples)
	if len(b) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(b))
	}
	if b[2] != 0x01 || b[3] != 0x00 {
		t.Errorf("expected little-endian encoding, got % x", b[2:4])
	}
	back := BytesToInt16(b)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}

func TestBytesToInt16_OddLength(t *testing.T) {
	if got := BytesToInt16([]byte{1, 0, 9}); len(got) != 1 || got[0] != 1 {
		t.Errorf("expected [1], got %v", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("expected 0 for no samples, got %f", got)
	}
	if got := RMS(make([]int16, 64)); got != 0 {
		t.Errorf("expected 0 for silence, got %f", got)
	}
	full := []int16{-32768, -32768}
	if got := RMS(full); got < 0.999 || got > 1.0 {
		t.Errorf("expected ~1 for full scale, got %f", got)
	}
}

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Standard audio sample rates.
const (
	SampleRate48kHz = 48000 // Common device native rate
	SampleRate24kHz = 24000 // Model speech output rate
	SampleRate16kHz = 16000 // Microphone rate expected by the model
)

const (
	// bytesPerSample is the size of one PCM16 sample.
	bytesPerSample = 2
	// maxAmplitude is the magnitude of the most negative int16 sample.
	maxAmplitude = 32768.0
)

// ResamplePCM16 resamples PCM16 audio data from one sample rate to another.
// Uses linear interpolation for reasonable quality resampling.
// Input and output are little-endian 16-bit signed PCM samples.
func ResamplePCM16(input []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		result := make([]byte, len(input))
		copy(result, input)
		return result, nil
	}

	if len(input)%bytesPerSample != 0 {
		return nil, fmt.Errorf("input length %d is not a multiple of %d bytes per sample", len(input), bytesPerSample)
	}

	inputSamples := BytesToInt16(input)
	if len(inputSamples) == 0 {
		return []byte{}, nil
	}

	numOutputSamples := int(float64(len(inputSamples)) * float64(toRate) / float64(fromRate))
	if numOutputSamples == 0 {
		return []byte{}, nil
	}

	outputSamples := make([]int16, numOutputSamples)
	ratio := float64(fromRate) / float64(toRate)
	last := len(inputSamples) - 1

	for i := range outputSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= last {
			outputSamples[i] = inputSamples[last]
			continue
		}
		s0 := float64(inputSamples[srcIdx])
		s1 := float64(inputSamples[srcIdx+1])
		outputSamples[i] = int16(s0 + frac*(s1-s0))
	}

	return Int16ToBytes(outputSamples), nil
}

// Int16ToBytes converts samples to little-endian PCM16 bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		//nolint:gosec // Safe PCM16 conversion
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(s))
	}
	return out
}

// BytesToInt16 converts little-endian PCM16 bytes to samples. A trailing odd
// byte is ignored.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:])) //nolint:gosec // Safe PCM16 conversion
	}
	return samples
}

// RMS returns the root mean square level of PCM16 samples in [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		normalized := float64(s) / maxAmplitude
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

package pcm

import (
	"encoding/base64"
	"fmt"
)

// DecodeBase64 decodes a base64-encoded PCM16 frame into normalized float32
// samples in [-1, 1). An empty input decodes to an empty sample slice.
func DecodeBase64(data string) ([]float32, error) {
	raw, err := DecodeBase64Bytes(data)
	if err != nil {
		return nil, err
	}
	return BytesToSamples(raw), nil
}

// DecodeBase64Bytes decodes a base64-encoded PCM16 frame to raw bytes.
func DecodeBase64Bytes(data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("pcm: decode base64: %w", err)
	}
	return raw, nil
}

// EncodeBase64 encodes raw PCM16 bytes to the base64 wire form.
func EncodeBase64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// BytesToSamples converts little-endian int16 bytes to normalized float32
// samples. A trailing odd byte is ignored.
func BytesToSamples(raw []byte) []float32 {
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(s) / 32768
	}
	return samples
}

// SamplesToBytes converts normalized float32 samples to little-endian int16
// bytes. Values outside [-1, 1] are clipped.
func SamplesToBytes(samples []float32) []byte {
	raw := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}
	return raw
}

// Int16ToBytes converts int16 samples to little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}
	return raw
}

// BytesToInt16 converts little-endian bytes to int16 samples.
// A trailing odd byte is ignored.
func BytesToInt16(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return samples
}

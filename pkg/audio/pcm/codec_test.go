package pcm

import (
	"bytes"
	"encoding/base64"
	"math"
	"math/rand"
	"testing"
)

func TestBase64RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{0, 1, 2, 4800, 24000, 48000, 100000} {
		raw := make([]byte, n)
		rng.Read(raw)

		decoded, err := DecodeBase64Bytes(EncodeBase64(raw))
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if !bytes.Equal(decoded, raw) {
			t.Errorf("n=%d: round trip altered payload", n)
		}
	}
}

func TestDecodeBase64Malformed(t *testing.T) {
	if _, err := DecodeBase64("not!!base64"); err == nil {
		t.Error("expected error for malformed base64")
	}
	if _, err := DecodeBase64Bytes("===="); err == nil {
		t.Error("expected error for malformed padding")
	}
}

func TestDecodeBase64Empty(t *testing.T) {
	samples, err := DecodeBase64("")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 0 {
		t.Errorf("empty input decoded to %d samples", len(samples))
	}
}

func TestBytesToSamplesNormalization(t *testing.T) {
	raw := Int16ToBytes([]int16{0, 16384, -16384, 32767, -32768})
	samples := BytesToSamples(raw)

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768, -1}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestBytesToSamplesIgnoresTrailingOddByte(t *testing.T) {
	raw := []byte{0x00, 0x40, 0x7f}
	samples := BytesToSamples(raw)
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
}

func TestSamplesToBytesClipping(t *testing.T) {
	raw := SamplesToBytes([]float32{2.0, -2.0})
	got := BytesToInt16(raw)
	if got[0] != 32767 {
		t.Errorf("positive overflow clipped to %d, want 32767", got[0])
	}
	if got[1] != -32767 {
		t.Errorf("negative overflow clipped to %d, want -32767", got[1])
	}
}

func TestInt16RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 12345, -12345, 32767, -32768}
	out := BytesToInt16(Int16ToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestEncodeBase64IsStdEncoding(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03}
	if got, want := EncodeBase64(raw), base64.StdEncoding.EncodeToString(raw); got != want {
		t.Errorf("EncodeBase64 = %q, want %q", got, want)
	}
}

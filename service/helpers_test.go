package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// brightnessEngine scores each class by how close the mean input intensity
// is to that class's centre, then applies softmax. Deterministic.
type brightnessEngine struct {
	runs   atomic.Int32
	closed atomic.Int32
	scale  float64
}

func (e *brightnessEngine) Run(_ context.Context, input []float32) ([]float32, error) {
	e.runs.Add(1)
	if len(input) != ImageSize*ImageSize*3 {
		return nil, errors.New("bad input length")
	}
	scale := e.scale
	if scale == 0 {
		scale = 255
	}
	var sum float64
	for _, v := range input {
		sum += float64(v)
	}
	mean := sum / float64(len(input)) / scale * 255

	logits := make([]float64, NumClasses)
	maxLogit := math.Inf(-1)
	for i := range logits {
		centre := float64(i) * 255 / float64(NumClasses-1)
		logits[i] = -(mean - centre) * (mean - centre) / 100
		maxLogit = math.Max(maxLogit, logits[i])
	}
	var total float64
	for i := range logits {
		logits[i] = math.Exp(logits[i] - maxLogit)
		total += logits[i]
	}
	out := make([]float32, NumClasses)
	for i := range logits {
		out[i] = float32(logits[i] / total)
	}
	return out, nil
}

func (e *brightnessEngine) Close() error {
	e.closed.Add(1)
	return nil
}

type staticEngine struct {
	out []float32
	err error
}

func (e *staticEngine) Run(context.Context, []float32) ([]float32, error) { return e.out, e.err }
func (e *staticEngine) Close() error                                     { return nil }

func engineLoader(e Engine) Loader {
	return LoaderFunc(func(context.Context) (Engine, error) { return e, nil })
}

// grayGradient is a horizontal 0..255 ramp, so its mean is 127.5.
func grayGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 0xff})
		}
	}
	return img
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, src.At(x, y))
		}
	}
	return g
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

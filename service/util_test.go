package service

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreprocessShape(t *testing.T) {
	for _, size := range []image.Point{{20, 30}, {160, 160}, {800, 600}} {
		img := grayGradient(size.X, size.Y)
		out := Preprocess(img, NormalizeRaw)
		require.Len(t, out, ImageSize*ImageSize*3, "source %v", size)
	}
	require.Equal(t, []int64{1, 160, 160, 3}, InputShape())
}

func TestPreprocessNormalization(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 100, 50, 255
	}

	raw := Preprocess(img, NormalizeRaw)
	require.Equal(t, []float32{200, 100, 50}, raw[:3])
	require.Equal(t, []float32{200, 100, 50}, raw[len(raw)-3:])

	unit := Preprocess(img, NormalizeUnit)
	require.InDelta(t, 200.0/255.0, unit[0], 1e-6)
	require.InDelta(t, 50.0/255.0, unit[2], 1e-6)
	for _, v := range unit {
		require.True(t, v >= 0 && v <= 1)
	}
}

func TestParseNormalization(t *testing.T) {
	n, err := ParseNormalization("")
	require.NoError(t, err)
	require.Equal(t, NormalizeRaw, n)

	n, err = ParseNormalization("UNIT")
	require.NoError(t, err)
	require.Equal(t, NormalizeUnit, n)

	_, err = ParseNormalization("imagenet")
	require.Error(t, err)
}

func TestDecodeImageDropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 128})

	img, err := DecodeImage(pngBytes(t, src))
	require.NoError(t, err)
	require.Equal(t, []uint8{10, 20, 30, 255, 40, 50, 60, 255}, img.Pix)
}

func TestDecodeImageGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 1, 1))
	src.SetGray(0, 0, color.Gray{Y: 77})

	img, err := DecodeImage(pngBytes(t, src))
	require.NoError(t, err)
	require.Equal(t, []uint8{77, 77, 77, 255}, img.Pix)
}

func TestDecodeImageMalformed(t *testing.T) {
	_, err := DecodeImage([]byte("definitely not an image"))
	require.Error(t, err)
}

func TestDecodeFormatAgnostic(t *testing.T) {
	photo := grayGradient(320, 240)
	rgba := image.NewRGBA(photo.Bounds())
	for i := range photo.Pix {
		rgba.Pix[i] = photo.Pix[i]
	}

	sources := map[string][]byte{
		"gray-png": pngBytes(t, toGray(photo)),
		"rgba-png": pngBytes(t, rgba),
		"jpeg":     jpegBytes(t, photo),
	}

	ref := Preprocess(photo, NormalizeRaw)
	for name, data := range sources {
		img, err := DecodeImage(data)
		require.NoError(t, err, name)
		got := Preprocess(img, NormalizeRaw)

		var diff float64
		for i := range ref {
			diff += math.Abs(float64(got[i] - ref[i]))
		}
		require.Less(t, diff/float64(len(ref)), 3.0, name)
	}
}

func TestReadLines(t *testing.T) {
	tags, err := ReadLines("labels.txt")
	require.NoError(t, err)
	require.Equal(t, Labels(), tags)
}

func TestArgmax(t *testing.T) {
	idx, best := argmax([]float32{0.1, 0.7, 0.2})
	require.Equal(t, 1, idx)
	require.Equal(t, float32(0.7), best)

	// ties keep the first index
	idx, _ = argmax([]float32{0.5, 0.5})
	require.Equal(t, 0, idx)
}

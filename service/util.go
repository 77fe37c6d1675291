package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

type Normalization int

const (
	// NormalizeRaw feeds pixel intensities as 0..255 floats.
	NormalizeRaw Normalization = iota
	// NormalizeUnit scales pixel intensities into [0,1].
	NormalizeUnit
)

func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return NormalizeRaw, nil
	case "unit":
		return NormalizeUnit, nil
	default:
		return 0, fmt.Errorf("unknown normalization %q", s)
	}
}

func (n Normalization) String() string {
	if n == NormalizeUnit {
		return "unit"
	}
	return "raw"
}

func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseLabels(string(b)), nil
}

// DecodeImage decodes any registered format and drops the alpha channel,
// so grayscale, paletted and RGBA sources all come out as opaque RGB.
func DecodeImage(data []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	rgb := imaging.Clone(img)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}
	return rgb, nil
}

// prepare image for model input, NHWC with a batch of one
func Preprocess(img image.Image, norm Normalization) []float32 {
	resized := imaging.Resize(img, ImageSize, ImageSize, imaging.CatmullRom)

	scale := float32(1)
	if norm == NormalizeUnit {
		scale = 1.0 / 255.0
	}

	out := make([]float32, ImageSize*ImageSize*3)
	i := 0
	for y := 0; y < ImageSize; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+ImageSize*4]
		for x := 0; x < ImageSize; x++ {
			p := row[x*4 : x*4+3]
			out[i] = float32(p[0]) * scale
			out[i+1] = float32(p[1]) * scale
			out[i+2] = float32(p[2]) * scale
			i += 3
		}
	}
	return out
}

// InputShape is the tensor shape Preprocess produces.
func InputShape() []int64 {
	return []int64{1, ImageSize, ImageSize, 3}
}

func argmax(v []float32) (int, float32) {
	idx, best := 0, v[0]
	for i, x := range v[1:] {
		if x > best {
			idx, best = i+1, x
		}
	}
	return idx, best
}

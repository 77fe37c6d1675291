package service

import (
	"context"
	"fmt"
)

// ImageSize is the spatial resolution of the model's input layer.
const ImageSize = 160

// NumClasses is the length of the model's output vector.
const NumClasses = 39

type Prediction struct {
	Disease    string  `json:"disease"`
	Confidence float32 `json:"confidence"`

	ImageSHA256 string `json:"-"`
}

// Engine runs one forward pass over an NHWC batch of one.
type Engine interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

type Loader interface {
	Load(ctx context.Context) (Engine, error)
}

type LoaderFunc func(ctx context.Context) (Engine, error)

func (f LoaderFunc) Load(ctx context.Context) (Engine, error) {
	return f(ctx)
}

// ClassificationError is the only error Classifier.Predict returns.
type ClassificationError struct {
	Message string
	Err     error
}

func (e *ClassificationError) Error() string {
	return e.Message
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

func classificationError(err error, format string, args ...any) *ClassificationError {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg += ": " + err.Error()
	}
	return &ClassificationError{Message: msg, Err: err}
}

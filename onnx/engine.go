package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jagriti88-art/LeafLens/service"
	ort "github.com/yalue/onnxruntime_go"
)

// Loader builds an Engine from an ONNX model file. It implements service.Loader.
type Loader struct {
	ModelPath string
	PoolSize  int
	ImageSize int
	Classes   int
	Threads   int
}

type session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *session) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// Engine owns a fixed pool of sessions; each forward pass borrows one.
type Engine struct {
	pool chan *session
	size int
}

// checkShape accepts dynamic (negative) model dimensions anywhere.
func checkShape(what string, got ort.Shape, want ...int64) error {
	if len(got) != len(want) {
		return fmt.Errorf("model %s has shape %v, want %v", what, got, want)
	}
	for i := range want {
		if want[i] < 0 || got[i] < 0 {
			continue
		}
		if got[i] != want[i] {
			return fmt.Errorf("model %s has shape %v, want %v", what, got, want)
		}
	}
	return nil
}

func (l *Loader) validate() (string, string, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(l.ModelPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return "", "", fmt.Errorf("model has %d inputs and %d outputs, want 1 and 1", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return "", "", fmt.Errorf("model input %s is %v, want float32", in.Name, in.DataType)
	}
	size := int64(l.ImageSize)
	if err := checkShape("input", in.Dimensions, -1, size, size, 3); err != nil {
		return "", "", err
	}
	if err := checkShape("output", out.Dimensions, -1, int64(l.Classes)); err != nil {
		return "", "", err
	}
	return in.Name, out.Name, nil
}

func (l *Loader) Load(ctx context.Context) (service.Engine, error) {
	inputName, outputName, err := l.validate()
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if l.Threads > 0 {
		if err := opts.SetIntraOpNumThreads(l.Threads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	size := max(l.PoolSize, 1)
	e := &Engine{pool: make(chan *session, size)}
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			e.Close()
			return nil, err
		}
		s, err := l.newSession(inputName, outputName, opts)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.pool <- s
		e.size++
	}
	slog.Info("ONNX model loaded",
		slog.String("path", l.ModelPath),
		slog.String("input", inputName),
		slog.String("output", outputName),
		slog.Int("sessions", size))
	return e, nil
}

func (l *Loader) newSession(inputName, outputName string, opts *ort.SessionOptions) (*session, error) {
	s := &session{}
	var err error
	s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(service.InputShape()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(l.Classes)))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(
		l.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{s.input},
		[]ort.Value{s.output},
		opts,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}
	return s, nil
}

func (e *Engine) Run(ctx context.Context, input []float32) ([]float32, error) {
	var s *session
	select {
	case s = <-e.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { e.pool <- s }()

	data := s.input.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), len(data))
	}
	copy(data, input)
	if err := s.session.Run(); err != nil {
		return nil, err
	}

	scores := s.output.GetData()
	out := make([]float32, len(scores))
	copy(out, scores)
	return out, nil
}

// Close waits for every borrowed session to come back, then destroys them.
func (e *Engine) Close() error {
	if e.size == 0 {
		return errors.New("engine already closed")
	}
	n := len(e.pool)
	if n < e.size {
		slog.Warn("Closing engine with sessions in use", slog.Int("idle", n), slog.Int("total", e.size))
	}
	for n := e.size; n > 0; n-- {
		(<-e.pool).destroy()
	}
	e.size = 0
	return nil
}

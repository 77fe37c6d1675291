package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

type Policy int

const (
	// PolicyLazy loads on first use and keeps the model for the process lifetime.
	PolicyLazy Policy = iota
	// PolicyResident loads eagerly at startup and keeps the model.
	PolicyResident
	// PolicyLazyRelease loads on demand and closes the model once no request holds it.
	PolicyLazyRelease
)

var errHandleClosed = errors.New("model handle is closed")

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lazy":
		return PolicyLazy, nil
	case "resident", "always-resident":
		return PolicyResident, nil
	case "lazy-release", "reload-per-call":
		return PolicyLazyRelease, nil
	default:
		return 0, fmt.Errorf("unknown memory policy %q", s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyResident:
		return "resident"
	case PolicyLazyRelease:
		return "lazy-release"
	default:
		return "lazy"
	}
}

type resident struct {
	engine  Engine
	gen     uint64
	refs    int
	retired bool
}

// Handle owns the model. Loads are serialized behind loadMu so concurrent
// first callers share one load; mu only guards bookkeeping and is never
// held across a load. An engine is closed once no request holds it.
type Handle struct {
	loader Loader
	policy Policy

	loadMu sync.Mutex

	mu     sync.Mutex
	cur    *resident
	gen    uint64
	loads  int
	closed bool
}

func NewHandle(loader Loader, policy Policy) *Handle {
	return &Handle{loader: loader, policy: policy}
}

func (h *Handle) Policy() Policy {
	return h.policy
}

// ref takes a reference on the current engine, if any.
func (h *Handle) ref() (*resident, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errHandleClosed
	}
	if h.cur != nil {
		h.cur.refs++
	}
	return h.cur, nil
}

// acquire returns the current engine with a reference held, loading it if needed.
func (h *Handle) acquire(ctx context.Context) (*resident, error) {
	if r, err := h.ref(); r != nil || err != nil {
		return r, err
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	for {
		// someone else may have loaded while we waited for the gate
		if r, err := h.ref(); r != nil || err != nil {
			return r, err
		}

		h.mu.Lock()
		h.loads++
		gen := h.gen
		h.mu.Unlock()

		engine, err := h.loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load model: %w", err)
		}
		if engine == nil {
			return nil, errors.New("failed to load model: loader returned no engine")
		}

		h.mu.Lock()
		switch {
		case h.closed:
			h.mu.Unlock()
			engine.Close()
			return nil, errHandleClosed
		case h.gen != gen:
			// reset while loading; the file may have changed under us
			h.mu.Unlock()
			engine.Close()
			continue
		}
		r := &resident{engine: engine, gen: gen, refs: 1}
		h.cur = r
		loads := h.loads
		h.mu.Unlock()

		slog.Info("Model loaded", slog.String("policy", h.policy.String()), slog.Int("loads", loads))
		return r, nil
	}
}

// Preload loads the model eagerly.
func (h *Handle) Preload(ctx context.Context) error {
	r, err := h.acquire(ctx)
	if err != nil {
		return err
	}
	h.unref(r, false)
	return nil
}

// Acquire returns the loaded engine, loading it if needed. The caller must
// call release exactly once when the forward pass is done.
func (h *Handle) Acquire(ctx context.Context) (Engine, func(), error) {
	r, err := h.acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return r.engine, h.releaser(r), nil
}

func (h *Handle) releaser(r *resident) func() {
	var once sync.Once
	return func() { once.Do(func() { h.unref(r, true) }) }
}

func (h *Handle) unref(r *resident, mayRelease bool) {
	h.mu.Lock()
	r.refs--
	closeNow := false
	if r.refs == 0 {
		if mayRelease && h.policy == PolicyLazyRelease && h.cur == r {
			h.cur = nil
			r.retired = true
		}
		closeNow = r.retired
	}
	h.mu.Unlock()

	if closeNow {
		if err := r.engine.Close(); err != nil {
			slog.Error("Failed to release model", slog.String("error", err.Error()))
		}
	}
}

// retire must be called with h.mu held. It returns the engine to close, if
// nobody holds it any more.
func (h *Handle) retire() Engine {
	h.gen++
	r := h.cur
	if r == nil {
		return nil
	}
	h.cur = nil
	r.retired = true
	if r.refs == 0 {
		return r.engine
	}
	return nil
}

// Reset drops the current model so the next request loads it again.
// In-flight requests keep the old engine until they finish.
func (h *Handle) Reset() {
	h.mu.Lock()
	e := h.retire()
	h.mu.Unlock()
	if e != nil {
		if err := e.Close(); err != nil {
			slog.Error("Failed to release model", slog.String("error", err.Error()))
		}
	}
}

// Close releases the model and makes every later Acquire fail.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	e := h.retire()
	h.mu.Unlock()
	if e != nil {
		return e.Close()
	}
	return nil
}

func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur != nil
}

// Loads reports how many times the loader has been invoked.
func (h *Handle) Loads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loads
}

// Generation changes every time the model is reset, so results computed
// by an older engine can be told apart from current ones.
func (h *Handle) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen
}

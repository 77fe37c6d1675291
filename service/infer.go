package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
)

type Classifier struct {
	handle *Handle
	labels []string
	norm   Normalization
	cache  *Cache
}

type Option func(*Classifier)

func WithNormalization(n Normalization) Option {
	return func(c *Classifier) { c.norm = n }
}

func WithCache(cache *Cache) Option {
	return func(c *Classifier) { c.cache = cache }
}

func WithLabels(labels []string) Option {
	return func(c *Classifier) { c.labels = labels }
}

func NewClassifier(handle *Handle, opts ...Option) *Classifier {
	c := &Classifier{
		handle: handle,
		labels: Labels(),
		norm:   NormalizeRaw,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) Handle() *Handle {
	return c.handle
}

func (c *Classifier) Cache() *Cache {
	return c.cache
}

// Predict runs the full pipeline over raw image bytes. Any failure is
// returned as a *ClassificationError.
func (c *Classifier) Predict(ctx context.Context, data []byte) (*Prediction, error) {
	if len(data) == 0 {
		return nil, classificationError(nil, "empty upload")
	}
	digest := sha256.Sum256(data)
	if p, ok := c.cache.Get(CacheKey{Digest: digest, Generation: c.handle.Generation()}); ok {
		slog.Debug("Prediction served from cache", slog.String("disease", p.Disease))
		return &p, nil
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, classificationError(err, "cannot identify image file")
	}
	input := Preprocess(img, c.norm)

	r, err := c.handle.acquire(ctx)
	if err != nil {
		return nil, classificationError(err, "model unavailable")
	}
	defer c.handle.releaser(r)()

	scores, err := r.engine.Run(ctx, input)
	if err != nil {
		return nil, classificationError(err, "inference failed")
	}
	if len(scores) != len(c.labels) {
		return nil, classificationError(errors.New("shape mismatch"),
			"model returned %d scores for %d labels", len(scores), len(c.labels))
	}

	idx, best := argmax(scores)
	p := Prediction{
		Disease:     c.labels[idx],
		Confidence:  best,
		ImageSHA256: hex.EncodeToString(digest[:]),
	}
	// keyed by the generation of the engine that ran, not the current one
	c.cache.Add(CacheKey{Digest: digest, Generation: r.gen}, p)
	return &p, nil
}

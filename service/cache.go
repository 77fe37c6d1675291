package service

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheKey pairs the SHA-256 of the uploaded bytes with the model generation
// that produced the prediction, so answers from a replaced model never match.
type CacheKey struct {
	Digest     [32]byte
	Generation uint64
}

// Cache maps uploads to the prediction made for them.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	lru *lru.Cache[CacheKey, Prediction]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[CacheKey, Prediction](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) Get(key CacheKey) (Prediction, bool) {
	if c == nil {
		return Prediction{}, false
	}
	return c.lru.Get(key)
}

func (c *Cache) Add(key CacheKey, p Prediction) {
	if c == nil {
		return
	}
	c.lru.Add(key, p)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge frees entries from older model generations, which can no longer match.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

package ranking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/verte-zerg/livetiming/internal/model"
)

// Cache memoizes Compute by a hash of the full snapshot and race id. Each
// entry keeps the encoded input it was computed from, and a hit is only used
// when that input matches byte for byte. Returned slices are copies and may be
// modified by the caller.
type Cache struct {
	entries *lru.Cache[uint64, cacheEntry]
}

type cacheEntry struct {
	input   []byte
	results []model.RankedResult
}

// NewCache returns a cache holding at most size computed result sets.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[uint64, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ranking cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Compute returns the same rows as the package-level Compute.
func (c *Cache) Compute(snap model.Snapshot, raceID string) []model.RankedResult {
	input, err := encodeInput(snap, raceID)
	if err != nil {
		return Compute(snap, raceID)
	}
	key := inputKey(input)
	if cached, ok := c.entries.Get(key); ok && bytes.Equal(cached.input, input) {
		return cloneResults(cached.results)
	}
	results := Compute(snap, raceID)
	c.entries.Add(key, cacheEntry{input: input, results: cloneResults(results)})
	return results
}

// Len reports the number of cached result sets.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func encodeInput(snap model.Snapshot, raceID string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(raceID); err != nil {
		return nil, err
	}
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inputKey(input []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(input)
	return h.Sum64()
}

func cloneResults(in []model.RankedResult) []model.RankedResult {
	out := make([]model.RankedResult, len(in))
	for i, r := range in {
		r.Splits = append([]model.SegmentSplit(nil), r.Splits...)
		segments := make(map[string]string, len(r.Segments))
		for k, v := range r.Segments {
			segments[k] = v
		}
		r.Segments = segments
		out[i] = r
	}
	return out
}

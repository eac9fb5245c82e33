package tree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// Params are the tuning thresholds of the hash tree. They take part in
// deciding tree shape, so every tree in a repository must be built with the
// same Params or identical content will hash differently.
type Params struct {
	// SplitFactor is the number of pending entries a MutableTree holds
	// directly before it normalizes eagerly.
	SplitFactor int `toml:"split_factor"`
	// NormalizedSizeLimit is the largest number of entries a normalized
	// node keeps as a leaf. Larger nodes are split into buckets.
	NormalizedSizeLimit int `toml:"normalized_size_limit"`
	// Buckets is the fan-out of a bucketed node.
	Buckets int `toml:"buckets"`
	// MaxDepth bounds recursion. Nodes at this depth stay leaves whatever
	// their size.
	MaxDepth int `toml:"max_depth"`
}

// DefaultParams returns the thresholds used by new repositories.
func DefaultParams() Params {
	return Params{
		SplitFactor:         2048,
		NormalizedSizeLimit: 512,
		Buckets:             32,
		MaxDepth:            8,
	}
}

// ErrInvalidParams is returned by Validate.
var ErrInvalidParams = errors.New("invalid tree parameters")

// Validate checks that p describes a usable tree.
func (p Params) Validate() error {
	switch {
	case p.NormalizedSizeLimit < 1:
		return fmt.Errorf("%w: normalized size limit %d < 1", ErrInvalidParams, p.NormalizedSizeLimit)
	case p.SplitFactor <= p.NormalizedSizeLimit:
		return fmt.Errorf("%w: split factor %d must exceed normalized size limit %d", ErrInvalidParams, p.SplitFactor, p.NormalizedSizeLimit)
	case p.Buckets < 2 || p.Buckets > 1<<16:
		return fmt.Errorf("%w: bucket count %d out of range [2, 65536]", ErrInvalidParams, p.Buckets)
	case p.MaxDepth < 1 || p.MaxDepth > 255:
		return fmt.Errorf("%w: max depth %d out of range [1, 255]", ErrInvalidParams, p.MaxDepth)
	}
	return nil
}

// BucketIndex returns the bucket key falls into at depth. The depth salts the
// hash so a bucket's keys spread again one level down.
func BucketIndex(depth int, key string, buckets int) uint32 {
	h := blake3.New()
	h.Write([]byte{byte(depth)})
	h.Write([]byte(key))
	var sum [32]byte
	h.Sum(sum[:0])
	return binary.BigEndian.Uint32(sum[:4]) % uint32(buckets)
}

func (p Params) bucketOf(depth int, key string) uint32 {
	return BucketIndex(depth, key, p.Buckets)
}

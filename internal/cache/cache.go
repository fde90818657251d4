// Package cache keeps rendered figures keyed by their inputs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"backtestplot/internal/finance"
)

// Cache stores rendered figure bytes.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, img []byte) error
}

// Key identifies a rendering of a batch in a format at a size in inches.
func Key(format string, width, height float64, b *finance.Batch) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to encode batch for cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s|%.4f|%.4f|%s", format, width, height, hex.EncodeToString(sum[:])), nil
}

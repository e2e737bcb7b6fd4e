package security

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const bigQueryCostPerTB = 5.0 // USD

// ErrCostLimit is returned when a query would scan more than the limit.
var ErrCostLimit = errors.New("query cost limit exceeded")

// CostTracker enforces the bytes-processed limit of warehouse queries
type CostTracker struct {
	maxBytes int64
	enabled  bool
}

func NewCostTracker(maxBytes int64, enabled bool) *CostTracker {
	return &CostTracker{maxBytes: maxBytes, enabled: enabled}
}

// Check fails when totalBytesProcessed exceeds the limit.
func (ct *CostTracker) Check(totalBytesProcessed int64) error {
	if ct == nil || !ct.enabled || ct.maxBytes <= 0 || totalBytesProcessed <= ct.maxBytes {
		return nil
	}
	return fmt.Errorf("%w: processed %.2fGB, limit %.2fGB", ErrCostLimit,
		float64(totalBytesProcessed)/bytesPerGB, float64(ct.maxBytes)/bytesPerGB)
}

// Record logs the cost of a finished query with a hashed SQL identifier.
func (ct *CostTracker) Record(queryName, sql string, totalBytesProcessed, durationMs int64) {
	if ct == nil || !ct.enabled {
		return
	}
	processedGB := float64(totalBytesProcessed) / bytesPerGB
	costUSD := processedGB / 1000.0 * bigQueryCostPerTB

	log.Info().
		Str("event", "query_cost").
		Str("query_name", queryName).
		Str("sql_hash", hashStr(sql)[:16]).
		Float64("cost_gb", processedGB).
		Float64("cost_usd", costUSD).
		Int64("duration_ms", durationMs).
		Msgf("query cost: %.4fGB ($%.4f)", processedGB, costUSD)
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}

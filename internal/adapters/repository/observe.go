package repository

import (
	"time"

	"github.com/okian/bananas/pkg/metrics"
)

// observe records latency for every store call and counts failures. It is
// deferred with a pointer to the named error result.
func observe(backend, op string, start time.Time, err *error) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordStoreLatency(backend, op, ms)
	if err != nil && *err != nil {
		metrics.RecordStoreError(backend, op)
	}
}

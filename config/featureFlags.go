package config

import (
	"os"
	"strings"
)

const (
	ReceiptSequenceCounter = "counter"
	ReceiptSequenceRedis   = "redis"
	ReceiptSequenceCount   = "count"
)

// ReceiptSequenceMode picks how receipt numbers are allocated.
//
// Set via env:
// - RECEIPT_SEQUENCE=counter (default, DB row per supplier/day)
// - RECEIPT_SEQUENCE=redis   (INCR, needs REDIS_ADDRESS)
// - RECEIPT_SEQUENCE=count   (legacy count of today's sales + 1)
func ReceiptSequenceMode() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RECEIPT_SEQUENCE")))
	switch v {
	case ReceiptSequenceRedis, ReceiptSequenceCount:
		return v
	default:
		return ReceiptSequenceCounter
	}
}

// SummaryLockDisabled turns off the redis lock around ensure+recompute.
//
// Set via env:
// - SUMMARY_LOCK_DISABLED=true
func SummaryLockDisabled() bool {
	return envBool("SUMMARY_LOCK_DISABLED")
}

func AuthRequired() bool {
	return envBool("AUTH_REQUIRED")
}

func RateLimitEnabled() bool {
	return envBool("RATE_LIMIT_ENABLED")
}

func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

package gateway

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindRateLimited   Kind = "RATE_LIMITED"
	KindQuotaExceeded Kind = "QUOTA_EXCEEDED"
	KindProviderError Kind = "PROVIDER_ERROR"
)

// Error is the gateway's user-facing failure taxonomy. Quota and rate
// errors carry enough structure for the UI to render retry and upgrade
// prompts; provider errors stay generic so upstream internals never leak.
type Error struct {
	Kind            Kind
	RetryAfter      time.Duration // set for RATE_LIMITED
	Limit           int64         // set for QUOTA_EXCEEDED and RATE_LIMITED
	Remaining       int64         // set for QUOTA_EXCEEDED
	UpgradeRequired bool
	cause           error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	case KindQuotaExceeded:
		return fmt.Sprintf("quota exceeded (limit %d, remaining %d)", e.Limit, e.Remaining)
	default:
		return "provider error"
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

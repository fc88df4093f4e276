package medhttp

import (
	"time"

	"github.com/fOmar24/Medical-Research-Data-Sharing/ratelimit"
)

// RateLimiter is the minimal interface the adapter needs. Both the in-memory
// and the Redis limiter satisfy it.
type RateLimiter interface {
	AllowNamed(bucket string, key string) (bool, error)
}

// Rate limit bucket names, one per abuse-sensitive endpoint group.
const (
	RLNonce        = "wallet_nonce"
	RLAuth         = "wallet_auth"
	RLSession      = "wallet_session"
	RLProfile      = "wallet_profile"
	RLChainRead    = "chain_read"
	RLDatasetRead  = "dataset_read"
	RLDatasetWrite = "dataset_write"
	RLAccessWrite  = "access_write"
	RLAudit        = "audit_read"
	RLUploadURL    = "upload_url"
)

// DefaultRateLimits returns the built-in per-endpoint limits, enforced per
// client IP (as determined by the Service's ClientIPFunc). Hosts can override
// by supplying their own limiter via WithRateLimiter.
func DefaultRateLimits() ratelimit.Limits {
	return ratelimit.Limits{
		"default": {Max: 120, Window: time.Minute},

		// Challenge issuance and login are the abuse-prone pair: nonce
		// issuance writes a row, login drives signature verification.
		RLNonce: {Max: 30, Window: time.Minute},
		RLAuth:  {Max: 20, Window: time.Minute},

		RLSession: {Max: 120, Window: time.Minute},
		RLProfile: {Max: 60, Window: 10 * time.Minute},

		// Chain reads proxy to the fullnode.
		RLChainRead: {Max: 30, Window: time.Minute},

		RLDatasetRead:  {Max: 120, Window: time.Minute},
		RLDatasetWrite: {Max: 30, Window: 10 * time.Minute},
		RLAccessWrite:  {Max: 30, Window: 10 * time.Minute},
		RLAudit:        {Max: 60, Window: time.Minute},
		RLUploadURL:    {Max: 20, Window: 10 * time.Minute},
	}
}

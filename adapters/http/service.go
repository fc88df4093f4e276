// Package medhttp mounts the wallet-auth and dataset APIs on net/http.
package medhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
	"github.com/fOmar24/Medical-Research-Data-Sharing/datasets"
	memorylimiter "github.com/fOmar24/Medical-Research-Data-Sharing/ratelimit/memory"
	"github.com/fOmar24/Medical-Research-Data-Sharing/suirpc"
	"github.com/fOmar24/Medical-Research-Data-Sharing/walrus"
)

// DatasetService is the dataset surface the handlers mount. *datasets.Service
// implements it; tests substitute lighter implementations.
type DatasetService interface {
	List(ctx context.Context, f datasets.ListFilter) (*datasets.Page[*datasets.Dataset], error)
	Create(ctx context.Context, ownerID int64, in datasets.CreateInput) (*datasets.Dataset, error)
	Get(ctx context.Context, id, viewerID int64) (*datasets.DatasetView, error)
	Update(ctx context.Context, id, userID int64, in datasets.UpdateInput) (*datasets.Dataset, error)
	Delete(ctx context.Context, id, userID int64) error
	ListGrants(ctx context.Context, datasetID, userID int64) ([]*datasets.AccessGrant, error)
	GrantAccess(ctx context.Context, datasetID, ownerID int64, in datasets.GrantInput) (*datasets.AccessGrant, error)
	RevokeGrant(ctx context.Context, datasetID, grantID, userID int64, txHash *string) error
	RequestAccess(ctx context.Context, datasetID, requesterID int64, purpose string) (*datasets.AccessRequest, error)
	ListRequests(ctx context.Context, datasetID, userID int64, status string) ([]*datasets.AccessRequest, error)
	ListAudit(ctx context.Context, viewerID int64, f datasets.AuditFilter) (*datasets.Page[*datasets.AuditLog], error)
}

var _ DatasetService = (*datasets.Service)(nil)

// Service wraps the domain services with net/http mounting helpers.
type Service struct {
	svc      *core.Service
	data     DatasetService
	chain    *suirpc.Client
	blobs    *walrus.Client
	rl       RateLimiter
	clientIP ClientIPFunc
	secure   bool // mark session cookies Secure
	log      logrus.FieldLogger
}

// NewService wraps a core auth service. Defaults to the in-process rate
// limiter; multi-instance hosts should install the Redis limiter via
// WithRateLimiter.
func NewService(svc *core.Service) *Service {
	return &Service{
		svc:      svc,
		rl:       memorylimiter.New(DefaultRateLimits()),
		clientIP: DefaultClientIP(),
		log:      logrus.StandardLogger(),
	}
}

func (s *Service) WithDatasets(d DatasetService) *Service  { s.data = d; return s }
func (s *Service) WithChain(c *suirpc.Client) *Service     { s.chain = c; return s }
func (s *Service) WithWalrus(w *walrus.Client) *Service    { s.blobs = w; return s }
func (s *Service) WithRateLimiter(rl RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) DisableRateLimiter() *Service            { s.rl = nil; return s }
func (s *Service) WithSecureCookies(secure bool) *Service  { s.secure = secure; return s }

func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		s.clientIP = DefaultClientIP()
	} else {
		s.clientIP = fn
	}
	return s
}

func (s *Service) WithLogger(log logrus.FieldLogger) *Service {
	if log != nil {
		s.log = log
	}
	return s
}

func (s *Service) allow(r *http.Request, bucket string) bool {
	if s == nil || s.rl == nil {
		return true
	}
	ipFn := s.clientIP
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	ip := ipFn(r)
	if strings.TrimSpace(ip) == "" {
		return true
	}
	key := "medshare:" + bucket + ":ip:" + ip
	ok, err := s.rl.AllowNamed(bucket, key)
	if err != nil {
		return true
	}
	return ok
}

func (s *Service) meta(r *http.Request) core.Metadata {
	ipFn := s.clientIP
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	return core.Metadata{IP: ipFn(r), UserAgent: r.UserAgent()}
}

// Package walrus integrates with a Walrus blob store: blob identifier
// validation, existence checks against an aggregator, and short-lived
// signed grants that authorize direct uploads to a publisher.
package walrus

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// Blob IDs are 32 bytes, base58-encoded.
const blobIDLen = 32

var (
	ErrInvalidBlobID = errors.New("invalid_blob_id")
	ErrBlobNotFound  = errors.New("blob_not_found")
	ErrInvalidGrant  = errors.New("invalid_grant")
)

// ValidateBlobID reports whether id decodes to a 32-byte blob identifier.
func ValidateBlobID(id string) error {
	raw, err := base58.Decode(id)
	if err != nil || len(raw) != blobIDLen {
		return ErrInvalidBlobID
	}
	return nil
}

// NewBlobID returns a fresh random blob identifier. Used when minting
// upload grants before the client has produced content.
func NewBlobID() string {
	b := make([]byte, blobIDLen)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base58.Encode(b)
}

// Client talks to a Walrus aggregator/publisher pair.
type Client struct {
	aggregator string
	publisher  string
	grantKey   []byte
	grantTTL   time.Duration
	httpc      *http.Client
}

func New(aggregator, publisher string, grantKey []byte) *Client {
	return &Client{
		aggregator: strings.TrimRight(aggregator, "/"),
		publisher:  strings.TrimRight(publisher, "/"),
		grantKey:   grantKey,
		grantTTL:   15 * time.Minute,
		httpc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// WithGrantTTL overrides the upload-grant lifetime.
func (c *Client) WithGrantTTL(ttl time.Duration) *Client {
	if ttl > 0 {
		c.grantTTL = ttl
	}
	return c
}

// WithHTTPClient overrides the underlying HTTP client (tests).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.httpc = h
	}
	return c
}

// VerifyBlob checks that the blob exists on the aggregator. A syntactically
// invalid ID fails without a network round trip.
func (c *Client) VerifyBlob(ctx context.Context, blobID string) error {
	if err := ValidateBlobID(blobID); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.aggregator+"/v1/blobs/"+blobID, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("walrus aggregator: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrBlobNotFound
	default:
		return fmt.Errorf("walrus aggregator: unexpected status %d", resp.StatusCode)
	}
}

// Metadata describes a stored blob.
type Metadata struct {
	BlobID        string `json:"blobId"`
	ContentLength int64  `json:"contentLength"`
	ContentType   string `json:"contentType,omitempty"`
}

// Stat fetches size and content type for a blob without downloading it.
func (c *Client) Stat(ctx context.Context, blobID string) (*Metadata, error) {
	if err := ValidateBlobID(blobID); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.aggregator+"/v1/blobs/"+blobID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("walrus aggregator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBlobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("walrus aggregator: unexpected status %d", resp.StatusCode)
	}
	return &Metadata{
		BlobID:        blobID,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

// UploadGrant authorizes one direct upload to the publisher.
type UploadGrant struct {
	URL       string    `json:"uploadUrl"`
	BlobID    string    `json:"blobId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type grantClaims struct {
	jwt.RegisteredClaims
	BlobID string `json:"blob_id"`
	Wallet string `json:"wallet"`
}

// IssueUploadGrant mints a signed, short-lived token tying an upload slot
// to the requesting wallet.
func (c *Client) IssueUploadGrant(wallet string) (*UploadGrant, error) {
	blobID := NewBlobID()
	now := time.Now()
	exp := now.Add(c.grantTTL)
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		BlobID: blobID,
		Wallet: wallet,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.grantKey)
	if err != nil {
		return nil, err
	}
	return &UploadGrant{
		URL:       c.publisher + "/v1/blobs?blob_id=" + blobID,
		BlobID:    blobID,
		Token:     tok,
		ExpiresAt: exp,
	}, nil
}

// VerifyUploadGrant checks a grant token and returns the blob ID and wallet
// it was issued for.
func (c *Client) VerifyUploadGrant(token string) (blobID, wallet string, err error) {
	var claims grantClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.grantKey, nil
	})
	if err != nil || !tok.Valid {
		return "", "", ErrInvalidGrant
	}
	return claims.BlobID, claims.Wallet, nil
}

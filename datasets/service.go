// Package datasets implements dataset publishing, access control, and audit
// logging over Postgres via bun. Chain registration digests and Walrus blob
// references are checked against external verifiers before rows are written.
package datasets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
)

var (
	ErrNotFound         = errors.New("dataset_not_found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidTx        = errors.New("invalid_transaction")
	ErrInvalidBlob      = errors.New("invalid_blob_id")
	ErrDuplicateRequest = errors.New("duplicate_request")
)

// TxVerifier checks a transaction digest against the chain.
// *suirpc.Client satisfies it.
type TxVerifier interface {
	VerifyDigest(ctx context.Context, digest string) (bool, error)
}

// BlobVerifier checks that a blob identifier names stored content.
type BlobVerifier interface {
	VerifyBlob(ctx context.Context, blobID string) error
}

const defaultGrantTTL = 30 * 24 * time.Hour

// Service is the dataset domain layer.
type Service struct {
	db    *bun.DB
	users core.UserStore
	txs   TxVerifier
	blobs BlobVerifier
	log   logrus.FieldLogger
}

func NewService(db *bun.DB, users core.UserStore) *Service {
	return &Service{db: db, users: users, log: logrus.StandardLogger()}
}

// WithTxVerifier enables on-chain digest verification for writes that carry
// a tx hash. Without it, tx hashes are stored unverified.
func (s *Service) WithTxVerifier(v TxVerifier) *Service { s.txs = v; return s }

// WithBlobVerifier enables Walrus existence checks for blob references.
func (s *Service) WithBlobVerifier(v BlobVerifier) *Service { s.blobs = v; return s }

func (s *Service) WithLogger(log logrus.FieldLogger) *Service {
	if log != nil {
		s.log = log
	}
	return s
}

func (s *Service) verifyTx(ctx context.Context, digest *string) error {
	if digest == nil || *digest == "" || s.txs == nil {
		return nil
	}
	valid, err := s.txs.VerifyDigest(ctx, *digest)
	if err != nil {
		return fmt.Errorf("verify transaction: %w", err)
	}
	if !valid {
		return ErrInvalidTx
	}
	return nil
}

func (s *Service) verifyBlobs(ctx context.Context, ids []string) error {
	if s.blobs == nil {
		return nil
	}
	for _, id := range ids {
		if err := s.blobs.VerifyBlob(ctx, id); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidBlob, id)
		}
	}
	return nil
}

// audit appends an audit row. Best effort: failures are logged, never
// surfaced, so a broken audit sink cannot block dataset operations.
func (s *Service) audit(ctx context.Context, action string, datasetID, userID *int64, details map[string]any, txHash *string) {
	entry := &AuditLog{
		Action:    action,
		DatasetID: datasetID,
		UserID:    userID,
		Details:   details,
		TxHash:    txHash,
	}
	if _, err := s.db.NewInsert().Model(entry).ExcludeColumn("created_at").Exec(ctx); err != nil {
		s.log.WithError(err).WithField("action", action).Error("audit write failed")
	}
}

// ListFilter narrows and pages a dataset listing.
type ListFilter struct {
	DataType string
	Keyword  string
	OwnerID  int64
	Search   string
	Limit    int
	Offset   int
}

// Page is a paged result set.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns datasets matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page[*Dataset], error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	q := s.db.NewSelect().Model((*Dataset)(nil)).Relation("Owner")
	if f.DataType != "" {
		q = q.Where("dataset.data_type = ?", f.DataType)
	}
	if f.Keyword != "" {
		q = q.Where("? = ANY(dataset.keywords)", f.Keyword)
	}
	if f.OwnerID != 0 {
		q = q.Where("dataset.owner_id = ?", f.OwnerID)
	}
	if f.Search != "" {
		pat := "%" + f.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("dataset.title ILIKE ?", pat).WhereOr("dataset.description ILIKE ?", pat)
		})
	}

	var items []*Dataset
	total, err := q.Order("dataset.created_at DESC").Limit(limit).Offset(offset).ScanAndCount(ctx, &items)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return &Page[*Dataset]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}, nil
}

// CreateInput is the payload for publishing a dataset.
type CreateInput struct {
	Title          string   `json:"title"`
	Description    *string  `json:"description"`
	DataType       string   `json:"dataType"`
	LicenseType    string   `json:"licenseType"`
	Keywords       []string `json:"keywords"`
	TxHash         *string  `json:"txHash"`
	WalrusBlobIDs  []string `json:"walrusBlobIds"`
	Encrypted      *bool    `json:"encrypted"`
	EncryptionType *string  `json:"encryptionType"`
}

// Create publishes a dataset after verifying its chain digest and blob
// references, then writes a dataset_created audit entry.
func (s *Service) Create(ctx context.Context, ownerID int64, in CreateInput) (*Dataset, error) {
	if err := s.verifyTx(ctx, in.TxHash); err != nil {
		return nil, err
	}
	if err := s.verifyBlobs(ctx, in.WalrusBlobIDs); err != nil {
		return nil, err
	}

	encrypted := true
	if in.Encrypted != nil {
		encrypted = *in.Encrypted
	}
	ds := &Dataset{
		Title:          in.Title,
		Description:    in.Description,
		DataType:       in.DataType,
		LicenseType:    in.LicenseType,
		Keywords:       in.Keywords,
		OwnerID:        ownerID,
		TxHash:         in.TxHash,
		WalrusBlobIDs:  in.WalrusBlobIDs,
		Encrypted:      encrypted,
		EncryptionType: in.EncryptionType,
	}
	if _, err := s.db.NewInsert().Model(ds).
		ExcludeColumn("created_at", "updated_at").
		Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}

	s.audit(ctx, ActionDatasetCreated, &ds.ID, &ownerID, map[string]any{"title": ds.Title}, in.TxHash)
	return ds, nil
}

// HasAccess reports whether userID may read the dataset: ownership or an
// unexpired, unrevoked grant.
func (s *Service) HasAccess(ctx context.Context, ds *Dataset, userID int64) (bool, error) {
	if ds.OwnerID == userID {
		return true, nil
	}
	n, err := s.db.NewSelect().Model((*AccessGrant)(nil)).
		Where("dataset_id = ?", ds.ID).
		Where("grantee_id = ?", userID).
		Where("revoked = FALSE").
		Where("expires_at > now()").
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}
	return n > 0, nil
}

// DatasetView is a dataset with the viewer's access resolved.
type DatasetView struct {
	*Dataset
	HasAccess bool           `json:"hasAccess"`
	Grants    []*AccessGrant `json:"grants,omitempty"`
}

// Get loads a dataset for a viewer. Owners also get the grant list; viewers
// with access trigger a data_accessed audit entry.
func (s *Service) Get(ctx context.Context, id, viewerID int64) (*DatasetView, error) {
	ds := new(Dataset)
	err := s.db.NewSelect().Model(ds).Relation("Owner").Where("dataset.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}

	has, err := s.HasAccess(ctx, ds, viewerID)
	if err != nil {
		return nil, err
	}
	view := &DatasetView{Dataset: ds, HasAccess: has}

	if ds.OwnerID == viewerID {
		if err := s.db.NewSelect().Model(&view.Grants).Relation("Grantee").
			Where("access_grant.dataset_id = ?", id).
			Order("access_grant.granted_at DESC").Scan(ctx); err != nil {
			return nil, fmt.Errorf("list grants: %w", err)
		}
	} else if has {
		s.audit(ctx, ActionDataAccessed, &ds.ID, &viewerID, nil, nil)
	}
	return view, nil
}

// UpdateInput carries partial dataset edits; nil fields are untouched.
type UpdateInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	LicenseType *string   `json:"licenseType"`
	Keywords    *[]string `json:"keywords"`
}

// Update edits dataset metadata. Owner only.
func (s *Service) Update(ctx context.Context, id, userID int64, in UpdateInput) (*Dataset, error) {
	ds, err := s.mustOwn(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		ds.Title = *in.Title
	}
	if in.Description != nil {
		ds.Description = in.Description
	}
	if in.LicenseType != nil {
		ds.LicenseType = *in.LicenseType
	}
	if in.Keywords != nil {
		ds.Keywords = *in.Keywords
	}
	ds.UpdatedAt = time.Now()

	if _, err := s.db.NewUpdate().Model(ds).
		Column("title", "description", "license_type", "keywords", "updated_at").
		WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("update dataset: %w", err)
	}

	s.audit(ctx, ActionDatasetUpdated, &ds.ID, &userID, nil, nil)
	return ds, nil
}

// Delete removes a dataset and its grants and requests. Owner only. Audit
// rows survive with a dangling dataset reference cleared.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	ds, err := s.mustOwn(ctx, id, userID)
	if err != nil {
		return err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model((*AuditLog)(nil)).
			Set("dataset_id = NULL").Where("dataset_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*AccessGrant)(nil)).Where("dataset_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*AccessRequest)(nil)).Where("dataset_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*Dataset)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}

	s.audit(ctx, ActionDatasetDeleted, nil, &userID, map[string]any{"title": ds.Title, "dataset_id": id}, nil)
	return nil
}

func (s *Service) mustOwn(ctx context.Context, id, userID int64) (*Dataset, error) {
	ds := new(Dataset)
	err := s.db.NewSelect().Model(ds).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	if ds.OwnerID != userID {
		return nil, ErrForbidden
	}
	return ds, nil
}

// GrantInput describes a new access grant.
type GrantInput struct {
	GranteeAddress string  `json:"granteeAddress"`
	AccessLevel    string  `json:"accessLevel"`
	DurationDays   int     `json:"durationDays"`
	TxHash         *string `json:"txHash"`
}

// normalized resolves the grant defaults: read access, 30 days from now.
func (in GrantInput) normalized(now time.Time) (level string, expiresAt time.Time) {
	level = in.AccessLevel
	if level == "" {
		level = AccessRead
	}
	ttl := defaultGrantTTL
	if in.DurationDays > 0 {
		ttl = time.Duration(in.DurationDays) * 24 * time.Hour
	}
	return level, now.Add(ttl)
}

// GrantAccess gives a wallet access to a dataset. Owner only. The grantee is
// resolved or lazily created from their wallet address; an existing active
// grant for the pair is extended rather than duplicated, and any pending
// request from the grantee is marked approved.
func (s *Service) GrantAccess(ctx context.Context, datasetID, ownerID int64, in GrantInput) (*AccessGrant, error) {
	if _, err := s.mustOwn(ctx, datasetID, ownerID); err != nil {
		return nil, err
	}
	if err := s.verifyTx(ctx, in.TxHash); err != nil {
		return nil, err
	}

	grantee, err := s.users.ResolveOrCreate(ctx, in.GranteeAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve grantee: %w", err)
	}

	now := time.Now()
	level, expiresAt := in.normalized(now)
	grant := new(AccessGrant)
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(grant).
			Where("dataset_id = ?", datasetID).
			Where("grantee_id = ?", grantee.ID).
			Where("revoked = FALSE").
			Where("expires_at > now()").
			Limit(1).Scan(ctx)
		switch {
		case err == nil:
			grant.renew(level, expiresAt, in.TxHash)
			_, err = tx.NewUpdate().Model(grant).
				Column("access_level", "expires_at", "tx_hash").
				WherePK().Exec(ctx)
			if err != nil {
				return err
			}
		case errors.Is(err, sql.ErrNoRows):
			*grant = AccessGrant{
				DatasetID:   datasetID,
				GranteeID:   grantee.ID,
				AccessLevel: level,
				GrantedBy:   ownerID,
				ExpiresAt:   expiresAt,
				TxHash:      in.TxHash,
			}
			if _, err := tx.NewInsert().Model(grant).
				ExcludeColumn("granted_at").
				Returning("*").Exec(ctx); err != nil {
				return err
			}
		default:
			return err
		}

		// RequestAccess allows at most one pending request per pair.
		var pending []*AccessRequest
		if err := tx.NewSelect().Model(&pending).
			Where("dataset_id = ?", datasetID).
			Where("requester_id = ?", grantee.ID).
			Where("status = ?", StatusPending).
			Scan(ctx); err != nil {
			return err
		}
		for _, req := range pending {
			req.approve(ownerID, now)
			if _, err := tx.NewUpdate().Model(req).
				Column("status", "processed_at", "processed_by").
				WherePK().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("grant access: %w", err)
	}

	s.audit(ctx, ActionAccessGranted, &datasetID, &ownerID,
		map[string]any{"grantee": grantee.WalletAddress, "access_level": level}, in.TxHash)
	return grant, nil
}

// ListGrants returns every grant on a dataset. Owner only.
func (s *Service) ListGrants(ctx context.Context, datasetID, userID int64) ([]*AccessGrant, error) {
	if _, err := s.mustOwn(ctx, datasetID, userID); err != nil {
		return nil, err
	}
	var grants []*AccessGrant
	if err := s.db.NewSelect().Model(&grants).Relation("Grantee").
		Where("access_grant.dataset_id = ?", datasetID).
		Order("access_grant.granted_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// RevokeGrant revokes a grant on a dataset. Owner only. An unknown grant is
// ErrNotFound; revoking an already revoked grant is a no-op.
func (s *Service) RevokeGrant(ctx context.Context, datasetID, grantID, userID int64, txHash *string) error {
	if _, err := s.mustOwn(ctx, datasetID, userID); err != nil {
		return err
	}
	if err := s.verifyTx(ctx, txHash); err != nil {
		return err
	}

	grant := new(AccessGrant)
	err := s.db.NewSelect().Model(grant).
		Where("id = ?", grantID).
		Where("dataset_id = ?", datasetID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get grant: %w", err)
	}
	if grant.Revoked {
		return nil
	}

	grant.revoke(userID, txHash, time.Now())
	res, err := s.db.NewUpdate().Model(grant).
		Column("revoked", "revoked_at", "revoked_by", "revocation_tx_hash").
		WherePK().
		Where("revoked = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke grant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A concurrent revoke won the race; nothing left to do.
		return nil
	}

	s.audit(ctx, ActionAccessRevoked, &datasetID, &userID, map[string]any{"grant_id": grantID}, txHash)
	return nil
}

// RequestAccess files an access request. Owners cannot request their own
// dataset; one pending request per requester per dataset.
func (s *Service) RequestAccess(ctx context.Context, datasetID, requesterID int64, purpose string) (*AccessRequest, error) {
	ds := new(Dataset)
	err := s.db.NewSelect().Model(ds).Where("id = ?", datasetID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset: %w", err)
	}
	if ds.OwnerID == requesterID {
		return nil, ErrForbidden
	}

	n, err := s.db.NewSelect().Model((*AccessRequest)(nil)).
		Where("dataset_id = ?", datasetID).
		Where("requester_id = ?", requesterID).
		Where("status = ?", StatusPending).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("check pending requests: %w", err)
	}
	if n > 0 {
		return nil, ErrDuplicateRequest
	}

	req := &AccessRequest{
		DatasetID:   datasetID,
		RequesterID: requesterID,
		Purpose:     purpose,
		Status:      StatusPending,
	}
	if _, err := s.db.NewInsert().Model(req).
		ExcludeColumn("requested_at").
		Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	s.audit(ctx, ActionAccessRequested, &datasetID, &requesterID, map[string]any{"purpose": purpose}, nil)
	return req, nil
}

// ListRequests returns access requests for a dataset. Owner only.
func (s *Service) ListRequests(ctx context.Context, datasetID, userID int64, status string) ([]*AccessRequest, error) {
	if _, err := s.mustOwn(ctx, datasetID, userID); err != nil {
		return nil, err
	}
	q := s.db.NewSelect().Model((*AccessRequest)(nil)).Relation("Requester").
		Where("access_request.dataset_id = ?", datasetID)
	if status != "" {
		q = q.Where("access_request.status = ?", status)
	}
	var reqs []*AccessRequest
	if err := q.Order("access_request.requested_at DESC").Scan(ctx, &reqs); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

// AuditFilter narrows and pages an audit listing.
type AuditFilter struct {
	DatasetID int64
	Action    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// ListAudit returns audit entries the viewer may see: entries on datasets
// they own, plus their own actions.
func (s *Service) ListAudit(ctx context.Context, viewerID int64, f AuditFilter) (*Page[*AuditLog], error) {
	limit, offset := clampPage(f.Limit, f.Offset)

	q := s.db.NewSelect().Model((*AuditLog)(nil)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("audit_log.user_id = ?", viewerID).
				WhereOr("audit_log.dataset_id IN (SELECT id FROM datasets WHERE owner_id = ?)", viewerID)
		})
	if f.DatasetID != 0 {
		q = q.Where("audit_log.dataset_id = ?", f.DatasetID)
	}
	if f.Action != "" {
		q = q.Where("audit_log.action = ?", f.Action)
	}
	if f.From != nil {
		q = q.Where("audit_log.created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("audit_log.created_at <= ?", *f.To)
	}

	var items []*AuditLog
	total, err := q.Order("audit_log.created_at DESC").Limit(limit).Offset(offset).ScanAndCount(ctx, &items)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return &Page[*AuditLog]{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}, nil
}

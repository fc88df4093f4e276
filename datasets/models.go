package datasets

import (
	"time"

	"github.com/uptrace/bun"
)

// Dataset is a published research dataset. Content lives in Walrus; the row
// carries metadata, blob references, and the on-chain registration digest.
type Dataset struct {
	bun.BaseModel `bun:"table:datasets"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Title          string    `bun:"title,notnull" json:"title"`
	Description    *string   `bun:"description" json:"description,omitempty"`
	DataType       string    `bun:"data_type,notnull" json:"dataType"`
	LicenseType    string    `bun:"license_type,notnull" json:"licenseType"`
	Keywords       []string  `bun:"keywords,array" json:"keywords"`
	OwnerID        int64     `bun:"owner_id,notnull" json:"ownerId"`
	TxHash         *string   `bun:"tx_hash" json:"txHash,omitempty"`
	WalrusBlobIDs  []string  `bun:"walrus_blob_ids,array" json:"walrusBlobIds"`
	Encrypted      bool      `bun:"encrypted,notnull" json:"encrypted"`
	EncryptionType *string   `bun:"encryption_type" json:"encryptionType,omitempty"`
	CreatedAt      time.Time `bun:"created_at,nullzero,default:now()" json:"createdAt"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,default:now()" json:"updatedAt"`

	Owner *UserRef `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
}

// UserRef is the slim user projection joined into dataset responses.
type UserRef struct {
	bun.BaseModel `bun:"table:users"`

	ID            int64   `bun:"id,pk" json:"id"`
	WalletAddress string  `bun:"wallet_address" json:"walletAddress"`
	Name          *string `bun:"name" json:"name,omitempty"`
	Organization  *string `bun:"organization" json:"organization,omitempty"`
}

// AccessGrant gives a grantee read or full access to a dataset until it
// expires or is revoked.
type AccessGrant struct {
	bun.BaseModel `bun:"table:access_grants"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	DatasetID        int64      `bun:"dataset_id,notnull" json:"datasetId"`
	GranteeID        int64      `bun:"grantee_id,notnull" json:"granteeId"`
	AccessLevel      string     `bun:"access_level,notnull" json:"accessLevel"`
	GrantedBy        int64      `bun:"granted_by,notnull" json:"grantedBy"`
	GrantedAt        time.Time  `bun:"granted_at,nullzero,default:now()" json:"grantedAt"`
	ExpiresAt        time.Time  `bun:"expires_at,notnull" json:"expiresAt"`
	TxHash           *string    `bun:"tx_hash" json:"txHash,omitempty"`
	Revoked          bool       `bun:"revoked,notnull" json:"revoked"`
	RevokedAt        *time.Time `bun:"revoked_at" json:"revokedAt,omitempty"`
	RevokedBy        *int64     `bun:"revoked_by" json:"revokedBy,omitempty"`
	RevocationTxHash *string    `bun:"revocation_tx_hash" json:"revocationTxHash,omitempty"`

	Grantee *UserRef `bun:"rel:belongs-to,join:grantee_id=id" json:"grantee,omitempty"`
}

// Active reports whether the grant is usable at t.
func (g *AccessGrant) Active(t time.Time) bool {
	return !g.Revoked && g.ExpiresAt.After(t)
}

// renew moves an active grant forward instead of duplicating the row: level
// and expiry are replaced, granted_at and granted_by stay with the original
// grant.
func (g *AccessGrant) renew(level string, expiresAt time.Time, txHash *string) {
	g.AccessLevel = level
	g.ExpiresAt = expiresAt
	g.TxHash = txHash
}

// revoke marks the grant revoked at t. Idempotent on an already revoked grant.
func (g *AccessGrant) revoke(by int64, txHash *string, t time.Time) {
	if g.Revoked {
		return
	}
	g.Revoked = true
	g.RevokedAt = &t
	g.RevokedBy = &by
	g.RevocationTxHash = txHash
}

// AccessRequest is a pending/processed ask for dataset access.
type AccessRequest struct {
	bun.BaseModel `bun:"table:access_requests"`

	ID          int64      `bun:"id,pk,autoincrement" json:"id"`
	DatasetID   int64      `bun:"dataset_id,notnull" json:"datasetId"`
	RequesterID int64      `bun:"requester_id,notnull" json:"requesterId"`
	Purpose     string     `bun:"purpose,notnull" json:"purpose"`
	Status      string     `bun:"status,notnull,default:'pending'" json:"status"`
	RequestedAt time.Time  `bun:"requested_at,nullzero,default:now()" json:"requestedAt"`
	ProcessedAt *time.Time `bun:"processed_at" json:"processedAt,omitempty"`
	ProcessedBy *int64     `bun:"processed_by" json:"processedBy,omitempty"`
	TxHash      *string    `bun:"tx_hash" json:"txHash,omitempty"`

	Requester *UserRef `bun:"rel:belongs-to,join:requester_id=id" json:"requester,omitempty"`
}

// approve marks the request processed by the owner at t.
func (r *AccessRequest) approve(by int64, t time.Time) {
	r.Status = StatusApproved
	r.ProcessedAt = &t
	r.ProcessedBy = &by
}

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// Access levels.
const (
	AccessRead = "read"
	AccessFull = "full"
)

// AuditLog is an append-only record of dataset activity.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs"`

	ID        int64          `bun:"id,pk,autoincrement" json:"id"`
	Action    string         `bun:"action,notnull" json:"action"`
	DatasetID *int64         `bun:"dataset_id" json:"datasetId,omitempty"`
	UserID    *int64         `bun:"user_id" json:"userId,omitempty"`
	Details   map[string]any `bun:"details,type:jsonb" json:"details,omitempty"`
	TxHash    *string        `bun:"tx_hash" json:"txHash,omitempty"`
	CreatedAt time.Time      `bun:"created_at,nullzero,default:now()" json:"createdAt"`
}

// Audit actions.
const (
	ActionDatasetCreated  = "dataset_created"
	ActionDatasetUpdated  = "dataset_updated"
	ActionDatasetDeleted  = "dataset_deleted"
	ActionDataAccessed    = "data_accessed"
	ActionAccessGranted   = "access_granted"
	ActionAccessRevoked   = "access_revoked"
	ActionAccessRequested = "access_requested"
)

package medhttp

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
	"github.com/fOmar24/Medical-Research-Data-Sharing/datasets"
)

// stubDatasets records every call so tests can assert what reached the
// dataset service, and in particular that nothing reached it when the auth
// gate rejected the request. Canned errors let tests drive the error mapping.
type stubDatasets struct {
	mu    sync.Mutex
	calls []string

	lastGrant   datasets.GrantInput
	lastCreate  datasets.CreateInput
	lastPurpose string

	err error
}

func (s *stubDatasets) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubDatasets) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubDatasets) List(ctx context.Context, f datasets.ListFilter) (*datasets.Page[*datasets.Dataset], error) {
	s.record("List")
	if s.err != nil {
		return nil, s.err
	}
	return &datasets.Page[*datasets.Dataset]{Items: []*datasets.Dataset{}}, nil
}

func (s *stubDatasets) Create(ctx context.Context, ownerID int64, in datasets.CreateInput) (*datasets.Dataset, error) {
	s.record("Create")
	if s.err != nil {
		return nil, s.err
	}
	s.lastCreate = in
	return &datasets.Dataset{ID: 1, Title: in.Title, DataType: in.DataType, OwnerID: ownerID}, nil
}

func (s *stubDatasets) Get(ctx context.Context, id, viewerID int64) (*datasets.DatasetView, error) {
	s.record("Get")
	if s.err != nil {
		return nil, s.err
	}
	return &datasets.DatasetView{Dataset: &datasets.Dataset{ID: id}}, nil
}

func (s *stubDatasets) Update(ctx context.Context, id, userID int64, in datasets.UpdateInput) (*datasets.Dataset, error) {
	s.record("Update")
	if s.err != nil {
		return nil, s.err
	}
	return &datasets.Dataset{ID: id, OwnerID: userID}, nil
}

func (s *stubDatasets) Delete(ctx context.Context, id, userID int64) error {
	s.record("Delete")
	return s.err
}

func (s *stubDatasets) ListGrants(ctx context.Context, datasetID, userID int64) ([]*datasets.AccessGrant, error) {
	s.record("ListGrants")
	if s.err != nil {
		return nil, s.err
	}
	return []*datasets.AccessGrant{}, nil
}

func (s *stubDatasets) GrantAccess(ctx context.Context, datasetID, ownerID int64, in datasets.GrantInput) (*datasets.AccessGrant, error) {
	s.record("GrantAccess")
	if s.err != nil {
		return nil, s.err
	}
	s.lastGrant = in
	return &datasets.AccessGrant{
		ID:          7,
		DatasetID:   datasetID,
		GranteeID:   2,
		AccessLevel: in.AccessLevel,
		GrantedBy:   ownerID,
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

func (s *stubDatasets) RevokeGrant(ctx context.Context, datasetID, grantID, userID int64, txHash *string) error {
	s.record("RevokeGrant")
	return s.err
}

func (s *stubDatasets) RequestAccess(ctx context.Context, datasetID, requesterID int64, purpose string) (*datasets.AccessRequest, error) {
	s.record("RequestAccess")
	if s.err != nil {
		return nil, s.err
	}
	s.lastPurpose = purpose
	return &datasets.AccessRequest{ID: 3, DatasetID: datasetID, RequesterID: requesterID, Purpose: purpose, Status: datasets.StatusPending}, nil
}

func (s *stubDatasets) ListRequests(ctx context.Context, datasetID, userID int64, status string) ([]*datasets.AccessRequest, error) {
	s.record("ListRequests")
	if s.err != nil {
		return nil, s.err
	}
	return []*datasets.AccessRequest{}, nil
}

func (s *stubDatasets) ListAudit(ctx context.Context, viewerID int64, f datasets.AuditFilter) (*datasets.Page[*datasets.AuditLog], error) {
	s.record("ListAudit")
	if s.err != nil {
		return nil, s.err
	}
	return &datasets.Page[*datasets.AuditLog]{Items: []*datasets.AuditLog{}}, nil
}

func TestDatasetRoutesRequireSession(t *testing.T) {
	e := newTestEnv(t, core.Options{})

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/datasets"},
		{http.MethodPost, "/api/datasets"},
		{http.MethodGet, "/api/datasets/1"},
		{http.MethodPut, "/api/datasets/1"},
		{http.MethodDelete, "/api/datasets/1"},
		{http.MethodGet, "/api/datasets/1/access"},
		{http.MethodPost, "/api/datasets/1/access"},
		{http.MethodDelete, "/api/datasets/1/access/2"},
		{http.MethodGet, "/api/datasets/1/requests"},
		{http.MethodPost, "/api/datasets/1/requests"},
		{http.MethodGet, "/api/audit"},
	} {
		resp, body := e.do(t, route.method, route.path, nil, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
		require.Equal(t, "missing_credential", body["error"])

		resp, body = e.do(t, route.method, route.path, sessionHeader("bogus"), nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
		require.Equal(t, "invalid_session", body["error"])
	}

	// Every rejection happened before the dataset service saw anything.
	require.Empty(t, e.data.Calls())
}

func TestGrantAccessEndpoint(t *testing.T) {
	e := newTestEnv(t, core.Options{})
	token, _ := e.login(t)

	resp, body := e.do(t, http.MethodPost, "/api/datasets/5/access", sessionHeader(token),
		strings.NewReader(`{"granteeAddress":"0xabc","accessLevel":"full","durationDays":14}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	grant := body["grant"].(map[string]any)
	require.EqualValues(t, 5, grant["datasetId"])
	require.Equal(t, "full", grant["accessLevel"])

	require.Equal(t, []string{"GrantAccess"}, e.data.Calls())
	require.Equal(t, "0xabc", e.data.lastGrant.GranteeAddress)
	require.Equal(t, 14, e.data.lastGrant.DurationDays)

	// A grantee address is mandatory; the service is never consulted.
	resp, body = e.do(t, http.MethodPost, "/api/datasets/5/access", sessionHeader(token),
		strings.NewReader(`{"accessLevel":"read"}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "address_required", body["error"])
	require.Equal(t, []string{"GrantAccess"}, e.data.Calls())
}

func TestRevokeGrantEndpointErrorMapping(t *testing.T) {
	e := newTestEnv(t, core.Options{})
	token, _ := e.login(t)

	resp, body := e.do(t, http.MethodDelete, "/api/datasets/5/access/7", sessionHeader(token), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	e.data.err = datasets.ErrNotFound
	resp, body = e.do(t, http.MethodDelete, "/api/datasets/5/access/7", sessionHeader(token), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "dataset_not_found", body["error"])

	e.data.err = datasets.ErrForbidden
	resp, body = e.do(t, http.MethodDelete, "/api/datasets/5/access/7", sessionHeader(token), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "forbidden", body["error"])
}

func TestRequestAccessEndpoint(t *testing.T) {
	e := newTestEnv(t, core.Options{})
	token, _ := e.login(t)

	resp, body := e.do(t, http.MethodPost, "/api/datasets/5/requests", sessionHeader(token),
		strings.NewReader(`{"purpose":"replication study"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	req := body["request"].(map[string]any)
	require.Equal(t, "pending", req["status"])
	require.Equal(t, "replication study", e.data.lastPurpose)

	e.data.err = datasets.ErrDuplicateRequest
	resp, body = e.do(t, http.MethodPost, "/api/datasets/5/requests", sessionHeader(token),
		strings.NewReader(`{"purpose":"replication study"}`))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "duplicate_request", body["error"])
}

func TestCreateDatasetEndpointValidation(t *testing.T) {
	e := newTestEnv(t, core.Options{})
	token, _ := e.login(t)

	resp, body := e.do(t, http.MethodPost, "/api/datasets", sessionHeader(token),
		strings.NewReader(`{"title":"Cohort A","dataType":"genomic","licenseType":"restricted"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ds := body["dataset"].(map[string]any)
	require.Equal(t, "Cohort A", ds["title"])
	require.Equal(t, "Cohort A", e.data.lastCreate.Title)

	resp, body = e.do(t, http.MethodPost, "/api/datasets", sessionHeader(token),
		strings.NewReader(`{"title":"No type"}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "missing_fields", body["error"])
}

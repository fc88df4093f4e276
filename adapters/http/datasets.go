package medhttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fOmar24/Medical-Research-Data-Sharing/datasets"
)

// datasetErr maps dataset service errors onto the wire.
func (s *Service) datasetErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, datasets.ErrNotFound):
		notFound(w, "dataset_not_found")
	case errors.Is(err, datasets.ErrForbidden):
		forbidden(w, "forbidden")
	case errors.Is(err, datasets.ErrInvalidTx):
		badRequest(w, "invalid_transaction")
	case errors.Is(err, datasets.ErrInvalidBlob):
		badRequest(w, "invalid_blob_id")
	case errors.Is(err, datasets.ErrDuplicateRequest):
		conflict(w, "duplicate_request")
	default:
		s.log.WithError(err).Error("dataset operation failed")
		serverErr(w, "storage_error")
	}
}

func (s *Service) handleDatasetsGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDatasetRead) {
		tooMany(w)
		return
	}

	q := r.URL.Query()
	filter := datasets.ListFilter{
		DataType: q.Get("dataType"),
		Keyword:  q.Get("keyword"),
		Search:   q.Get("search"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}
	if q.Get("mine") == "true" {
		filter.OwnerID = AuthFromContext(r.Context()).UserID
	}

	page, err := s.data.List(r.Context(), filter)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"datasets": page.Items,
		"total":    page.Total,
		"limit":    page.Limit,
		"offset":   page.Offset,
		"hasMore":  page.HasMore,
	})
}

func (s *Service) handleDatasetsPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDatasetWrite) {
		tooMany(w)
		return
	}

	var in datasets.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid_request")
		return
	}
	if strings.TrimSpace(in.Title) == "" || in.DataType == "" || in.LicenseType == "" {
		badRequest(w, "missing_fields")
		return
	}

	ds, err := s.data.Create(r.Context(), AuthFromContext(r.Context()).UserID, in)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"dataset": ds})
}

func (s *Service) handleDatasetGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDatasetRead) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		badRequest(w, "invalid_id")
		return
	}

	view, err := s.data.Get(r.Context(), id, AuthFromContext(r.Context()).UserID)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset":   view.Dataset,
		"hasAccess": view.HasAccess,
		"grants":    view.Grants,
	})
}

func (s *Service) handleDatasetPUT(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDatasetWrite) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		badRequest(w, "invalid_id")
		return
	}

	var in datasets.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid_request")
		return
	}

	ds, err := s.data.Update(r.Context(), id, AuthFromContext(r.Context()).UserID, in)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dataset": ds})
}

func (s *Service) handleDatasetDELETE(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDatasetWrite) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		badRequest(w, "invalid_id")
		return
	}

	if err := s.data.Delete(r.Context(), id, AuthFromContext(r.Context()).UserID); err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleAccessGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDatasetRead) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		badRequest(w, "invalid_id")
		return
	}

	grants, err := s.data.ListGrants(r.Context(), id, AuthFromContext(r.Context()).UserID)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (s *Service) handleAccessPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAccessWrite) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		badRequest(w, "invalid_id")
		return
	}

	var in datasets.GrantInput
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid_request")
		return
	}
	if strings.TrimSpace(in.GranteeAddress) == "" {
		badRequest(w, "address_required")
		return
	}

	grant, err := s.data.GrantAccess(r.Context(), id, AuthFromContext(r.Context()).UserID, in)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"grant": grant})
}

func (s *Service) handleAccessDELETE(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAccessWrite) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	grantID := pathID(r, "grantId")
	if id == 0 || grantID == 0 {
		badRequest(w, "invalid_id")
		return
	}

	var txHash *string
	if v := strings.TrimSpace(r.URL.Query().Get("txHash")); v != "" {
		txHash = &v
	}

	if err := s.data.RevokeGrant(r.Context(), id, grantID, AuthFromContext(r.Context()).UserID, txHash); err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleRequestsGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLDatasetRead) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		badRequest(w, "invalid_id")
		return
	}

	reqs, err := s.data.ListRequests(r.Context(), id, AuthFromContext(r.Context()).UserID, r.URL.Query().Get("status"))
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": reqs})
}

func (s *Service) handleRequestsPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAccessWrite) {
		tooMany(w)
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		badRequest(w, "invalid_id")
		return
	}

	var in struct {
		Purpose string `json:"purpose"`
	}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, "invalid_request")
		return
	}
	if strings.TrimSpace(in.Purpose) == "" {
		badRequest(w, "purpose_required")
		return
	}

	req, err := s.data.RequestAccess(r.Context(), id, AuthFromContext(r.Context()).UserID, in.Purpose)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": req})
}

func (s *Service) handleAuditGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAudit) {
		tooMany(w)
		return
	}

	q := r.URL.Query()
	filter := datasets.AuditFilter{
		DatasetID: int64(queryInt(r, "datasetId")),
		Action:    q.Get("action"),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}

	page, err := s.data.ListAudit(r.Context(), AuthFromContext(r.Context()).UserID, filter)
	if err != nil {
		s.datasetErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": page.Items,
		"total":   page.Total,
		"limit":   page.Limit,
		"offset":  page.Offset,
		"hasMore": page.HasMore,
	})
}

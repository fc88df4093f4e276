package medhttp

import "net/http"

func (s *Service) handleUploadURLPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLUploadURL) {
		tooMany(w)
		return
	}
	if s.blobs == nil {
		serverErr(w, "storage_unavailable")
		return
	}

	ac := AuthFromContext(r.Context())
	grant, err := s.blobs.IssueUploadGrant(ac.Wallet)
	if err != nil {
		s.log.WithError(err).Error("upload grant failed")
		serverErr(w, "grant_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":     grant.URL,
		"blobId":  grant.BlobID,
		"token":   grant.Token,
		"expires": grant.ExpiresAt,
	})
}

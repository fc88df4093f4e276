package medhttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
	"github.com/fOmar24/Medical-Research-Data-Sharing/suiwallet"
)

func (s *Service) handleWalletNonceGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLNonce) {
		tooMany(w)
		return
	}

	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		badRequest(w, "address_required")
		return
	}
	if err := suiwallet.ValidateAddress(address); err != nil {
		badRequest(w, "invalid_address")
		return
	}

	nonce, err := s.svc.IssueNonce(r.Context(), address)
	if err != nil {
		s.log.WithError(err).Error("nonce issuance failed")
		serverErr(w, "nonce_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

func (s *Service) handleWalletAuthPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAuth) {
		tooMany(w)
		return
	}

	raw := bearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		unauthorized(w, "missing_credential")
		return
	}
	cred, err := core.ParseCredential(raw)
	if err != nil {
		unauthorized(w, "missing_credential")
		return
	}

	result, err := s.svc.SignatureLogin(r.Context(), cred, s.meta(r))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidNonce):
			unauthorized(w, "invalid_nonce")
		case errors.Is(err, core.ErrInvalidSignature):
			unauthorized(w, "invalid_signature")
		case errors.Is(err, core.ErrMissingCredential):
			unauthorized(w, "missing_credential")
		default:
			s.log.WithError(err).Error("signature login failed")
			serverErr(w, "storage_error")
		}
		return
	}

	s.setSessionCookie(w, result.SessionToken, result.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionToken": result.SessionToken,
		"expiresAt":    result.ExpiresAt,
		"user":         result.User,
	})
}

func (s *Service) handleWalletSessionGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLSession) {
		tooMany(w)
		return
	}

	tok := sessionToken(r)
	if tok == "" {
		unauthorized(w, "missing_credential")
		return
	}
	sess, err := s.svc.ValidateSession(r.Context(), tok)
	if err != nil {
		sessionErr(w, err)
		return
	}
	user, err := s.svc.GetUser(r.Context(), sess.UserID)
	if err != nil {
		serverErr(w, "storage_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"session": map[string]any{"expiresAt": sess.ExpiresAt},
	})
}

func (s *Service) handleWalletSessionDELETE(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLSession) {
		tooMany(w)
		return
	}

	tok := sessionToken(r)
	if tok == "" {
		unauthorized(w, "missing_credential")
		return
	}
	if err := s.svc.Logout(r.Context(), tok); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidSession), errors.Is(err, core.ErrMissingCredential):
			sessionErr(w, err)
		default:
			s.log.WithError(err).Error("logout failed")
			serverErr(w, "logout_failed")
		}
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleWalletProfileGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLProfile) {
		tooMany(w)
		return
	}

	ac := AuthFromContext(r.Context())
	user, err := s.svc.GetUser(r.Context(), ac.UserID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			notFound(w, "user_not_found")
			return
		}
		serverErr(w, "storage_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Service) handleWalletProfilePUT(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLProfile) {
		tooMany(w)
		return
	}

	var req struct {
		Name         *string `json:"name"`
		Email        *string `json:"email"`
		Organization *string `json:"organization"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid_request")
		return
	}

	ac := AuthFromContext(r.Context())
	user, err := s.svc.UpdateProfile(r.Context(), ac.UserID, core.ProfileUpdate{
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
	})
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			notFound(w, "user_not_found")
			return
		}
		s.log.WithError(err).Error("profile update failed")
		serverErr(w, "storage_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func sessionErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrMissingCredential):
		unauthorized(w, "missing_credential")
	case errors.Is(err, core.ErrInvalidSession):
		unauthorized(w, "invalid_session")
	default:
		serverErr(w, "storage_error")
	}
}

func (s *Service) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

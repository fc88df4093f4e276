package medhttp

import (
	"errors"
	"net/http"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
)

// Required validates the request's session token against the session store
// and attaches the session to the request context. Requests without a token
// get missing_credential; unknown, expired, or invalidated tokens get
// invalid_session. Handlers behind this middleware never run without a live
// session.
func Required(svc *core.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := sessionToken(r)
			if tok == "" {
				unauthorized(w, "missing_credential")
				return
			}
			sess, err := svc.ValidateSession(r.Context(), tok)
			if err != nil {
				switch {
				case errors.Is(err, core.ErrMissingCredential):
					unauthorized(w, "missing_credential")
				case errors.Is(err, core.ErrInvalidSession):
					unauthorized(w, "invalid_session")
				default:
					serverErr(w, "storage_error")
				}
				return
			}
			next.ServeHTTP(w, setAuth(r, &AuthContext{
				Session: sess,
				UserID:  sess.UserID,
				Wallet:  sess.WalletAddress,
			}))
		})
	}
}

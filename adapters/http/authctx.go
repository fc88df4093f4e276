package medhttp

import (
	"context"
	"net/http"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
)

type ctxKey int

const authKey ctxKey = 0

// AuthContext is the validated session attached to a request by the session
// gate middleware.
type AuthContext struct {
	Session *core.Session
	UserID  int64
	Wallet  string
}

func setAuth(r *http.Request, ac *AuthContext) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), authKey, ac))
}

// AuthFromContext returns the request's validated session, or nil when the
// request did not pass through the session gate.
func AuthFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authKey).(*AuthContext)
	return ac
}

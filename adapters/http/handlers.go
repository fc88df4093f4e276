package medhttp

import (
	"net/http"
)

// APIHandler returns a handler serving the JSON API under /api/*. It is
// intended to be mounted at the host mux root.
func (s *Service) APIHandler() http.Handler {
	if s == nil || s.svc == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { serverErr(w, "not_initialized") })
	}

	mux := http.NewServeMux()
	required := Required(s.svc)

	// Wallet auth lifecycle
	mux.Handle("GET /api/wallet/nonce", http.HandlerFunc(s.handleWalletNonceGET))
	mux.Handle("POST /api/wallet/auth", http.HandlerFunc(s.handleWalletAuthPOST))
	mux.Handle("GET /api/wallet/session", http.HandlerFunc(s.handleWalletSessionGET))
	mux.Handle("DELETE /api/wallet/session", http.HandlerFunc(s.handleWalletSessionDELETE))
	mux.Handle("GET /api/wallet/profile", required(http.HandlerFunc(s.handleWalletProfileGET)))
	mux.Handle("PUT /api/wallet/profile", required(http.HandlerFunc(s.handleWalletProfilePUT)))

	// Current user (alias surface kept for API clients)
	mux.Handle("GET /api/users/me", required(http.HandlerFunc(s.handleWalletProfileGET)))
	mux.Handle("PUT /api/users/me", required(http.HandlerFunc(s.handleWalletProfilePUT)))

	// Chain reads
	mux.Handle("GET /api/wallet/balance", required(http.HandlerFunc(s.handleWalletBalanceGET)))
	mux.Handle("GET /api/wallet/transactions", required(http.HandlerFunc(s.handleWalletTransactionsGET)))

	if s.data != nil {
		// Datasets
		mux.Handle("GET /api/datasets", required(http.HandlerFunc(s.handleDatasetsGET)))
		mux.Handle("POST /api/datasets", required(http.HandlerFunc(s.handleDatasetsPOST)))
		mux.Handle("GET /api/datasets/{id}", required(http.HandlerFunc(s.handleDatasetGET)))
		mux.Handle("PUT /api/datasets/{id}", required(http.HandlerFunc(s.handleDatasetPUT)))
		mux.Handle("DELETE /api/datasets/{id}", required(http.HandlerFunc(s.handleDatasetDELETE)))

		// Access control
		mux.Handle("GET /api/datasets/{id}/access", required(http.HandlerFunc(s.handleAccessGET)))
		mux.Handle("POST /api/datasets/{id}/access", required(http.HandlerFunc(s.handleAccessPOST)))
		mux.Handle("DELETE /api/datasets/{id}/access/{grantId}", required(http.HandlerFunc(s.handleAccessDELETE)))
		mux.Handle("GET /api/datasets/{id}/requests", required(http.HandlerFunc(s.handleRequestsGET)))
		mux.Handle("POST /api/datasets/{id}/requests", required(http.HandlerFunc(s.handleRequestsPOST)))

		mux.Handle("GET /api/audit", required(http.HandlerFunc(s.handleAuditGET)))
	}

	mux.Handle("POST /api/storage/upload-url", required(http.HandlerFunc(s.handleUploadURLPOST)))

	return mux
}

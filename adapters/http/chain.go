package medhttp

import "net/http"

func (s *Service) handleWalletBalanceGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLChainRead) {
		tooMany(w)
		return
	}
	if s.chain == nil {
		serverErr(w, "chain_unavailable")
		return
	}

	ac := AuthFromContext(r.Context())
	bal, err := s.chain.GetBalance(r.Context(), ac.Wallet)
	if err != nil {
		s.log.WithError(err).Error("balance lookup failed")
		serverErr(w, "chain_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": ac.Wallet,
		"balance": bal,
	})
}

func (s *Service) handleWalletTransactionsGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLChainRead) {
		tooMany(w)
		return
	}
	if s.chain == nil {
		serverErr(w, "chain_unavailable")
		return
	}

	ac := AuthFromContext(r.Context())
	txs, err := s.chain.QueryTransactions(r.Context(), ac.Wallet, queryInt(r, "limit"))
	if err != nil {
		s.log.WithError(err).Error("transaction query failed")
		serverErr(w, "chain_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

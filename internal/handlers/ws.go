package handlers

import (
	"net/http"
	"strings"

	"cashledger/internal/auth"
	"cashledger/internal/websocket"
)

// WSBalances upgrades to a websocket that receives the caller's balance
// updates. Browsers cannot set headers on a websocket handshake, so the token
// travels in the query string.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}

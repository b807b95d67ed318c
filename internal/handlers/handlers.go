package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"cashledger/internal/middleware"
	"cashledger/internal/money"
	"cashledger/internal/services"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}

// respondServiceError maps a domain error to its HTTP status. Anything that is
// not a domain error is logged and hidden behind a 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	domainErr, ok := services.AsError(err)
	if !ok {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindForbidden:
		status = http.StatusForbidden
	case services.KindConflict:
		status = http.StatusConflict
	}
	respondError(w, status, domainErr.Code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return false
	}
	return true
}

// actor resolves the acting user from the token. A body userId, when sent,
// must name the same user.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request, bodyUserID string) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return "", false
	}
	if bodyUserID != "" && bodyUserID != userID {
		h.respondServiceError(w, r, services.ErrUserMismatch)
		return "", false
	}
	return userID, true
}

// branchFor prefers the branch named in the request and falls back to the
// branch carried by the token.
func branchFor(r *http.Request, requested string) *string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return &requested
	}
	identity, ok := middleware.IdentityFromContext(r.Context())
	if ok && identity.BranchID != nil && *identity.BranchID != "" {
		branch := *identity.BranchID
		return &branch
	}
	return nil
}

func clientInfo(r *http.Request) services.ClientInfo {
	ip := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return services.ClientInfo{IP: ip, UserAgent: r.UserAgent()}
}

// parseAmount converts a JSON amount. Missing amounts are reported as
// invalid rather than zero.
func parseAmount(input money.Input) (decimal.Decimal, error) {
	if input.IsZero() {
		return decimal.Zero, services.ErrInvalidAmount
	}
	value, err := money.Parse(string(input))
	if err != nil {
		return decimal.Zero, wrapAmountError(err)
	}
	return value, nil
}

// parseOptionalAmount treats a missing amount as zero.
func parseOptionalAmount(input money.Input) (decimal.Decimal, error) {
	if input.IsZero() {
		return decimal.Zero, nil
	}
	return parseAmount(input)
}

func wrapAmountError(err error) error {
	return fmt.Errorf("%w: %v", services.ErrInvalidAmount, err)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	pkgauth "github.com/matiasleandrokruk/calcatalog/pkg/auth"
)

// adminSubject is the token subject of the single configured administrator.
const adminSubject = "admin"

// TokenIssuer signs admin tokens. *pkgauth.Issuer satisfies it.
type TokenIssuer interface {
	Issue(subject, role string) (string, time.Time, error)
}

// TokenHandler exchanges the admin password for a bearer token.
type TokenHandler struct {
	issuer       TokenIssuer
	passwordHash string
}

// NewTokenHandler creates a TokenHandler checking passwords against a bcrypt hash.
func NewTokenHandler(issuer TokenIssuer, passwordHash string) *TokenHandler {
	return &TokenHandler{issuer: issuer, passwordHash: passwordHash}
}

// TokenRequest is the request body for POST /auth/token.
type TokenRequest struct {
	Password string `json:"password"`
}

// TokenResponse is returned after a successful exchange.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueToken handles POST /auth/token.
//
// Response codes:
//   - 200 OK: token issued
//   - 400 Bad Request: invalid JSON or missing password
//   - 401 Unauthorized: wrong password
//   - 500 Internal Server Error: signing failed
func (h *TokenHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}
	if !pkgauth.VerifyPassword(h.passwordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.issuer.Issue(adminSubject, pkgauth.RoleAdmin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt})
}

package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/audit"
	"github.com/nerrad567/gray-logic-radio/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	Operator    *auth.Operator `json:"operator"`
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

// ticketEntry carries the identity of the operator who requested the
// ticket, so WebSocket connections inherit it.
type ticketEntry struct {
	operatorID string
	role       auth.Role
	expiresAt  time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// issue creates a single-use ticket bound to the given operator.
func (t *ticketStore) issue(operatorID string, role auth.Role) string {
	ticket := generateTicket()
	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{
		operatorID: operatorID,
		role:       role,
		expiresAt:  time.Now().Add(ticketTTL),
	}
	t.mu.Unlock()
	return ticket
}

// consume validates a ticket and removes it (single-use).
func (t *ticketStore) consume(ticket string) (ticketEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(t.tickets, ticket)

	if time.Now().After(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// clean removes expired tickets from the store.
func (t *ticketStore) clean() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

// cleanLoop runs clean periodically until the context is cancelled.
func (t *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.clean()
		}
	}
}

// handleLogin authenticates an operator and returns a JWT access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	op, err := s.operators.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorNotFound) {
			// Burn time comparable to a real verify so missing
			// usernames are not distinguishable by latency.
			_, _ = auth.VerifyPassword(req.Password, dummyHash)
			s.auditFailure("login", req.Username, auth.ErrInvalidCredentials, nil)
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login lookup failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	match, err := auth.VerifyPassword(req.Password, op.PasswordHash)
	if err != nil || !match {
		s.auditFailure("login", req.Username, auth.ErrInvalidCredentials, nil)
		writeUnauthorized(w, "invalid credentials")
		return
	}

	if !op.IsActive {
		s.auditFailure("login", req.Username, auth.ErrOperatorInactive, nil)
		writeForbidden(w, "account is inactive")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 //nolint:mnd // default 15-minute access token TTL
	}

	token, err := auth.GenerateAccessToken(op, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	s.auditSuccess("login", op.ID, map[string]any{"username": op.Username})

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60, //nolint:mnd // minutes to seconds
		Operator:    op,
	})
}

// handleAuthMe returns the authenticated operator's account.
func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	op, err := s.operators.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrOperatorNotFound) {
			writeUnauthorized(w, "account no longer exists")
			return
		}
		s.logger.Error("auth me lookup failed", "error", err)
		writeInternalError(w, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"operator":    op,
		"permissions": auth.PermissionsForRole(op.Role),
	})
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	ticket := s.tickets.issue(claims.Subject, claims.Role)

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// auditSuccess records a successful API action when auditing is wired.
func (s *Server) auditSuccess(action, actor string, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Success(action, actor, audit.SourceAPI, details)
}

// auditFailure records a failed API action when auditing is wired.
func (s *Server) auditFailure(action, actor string, err error, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Failure(action, actor, audit.SourceAPI, err, details)
}

// dummyHash is a throwaway argon2id hash used to equalise login timing
// for unknown usernames.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

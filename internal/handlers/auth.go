package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/smart-forms/internal/audit"
	"github.com/benvon/smart-forms/internal/database"
	logpkg "github.com/benvon/smart-forms/internal/logger"
	"github.com/benvon/smart-forms/internal/models"
	"github.com/benvon/smart-forms/internal/request"
	"github.com/benvon/smart-forms/internal/revocation"
	"github.com/benvon/smart-forms/internal/session"
	"github.com/benvon/smart-forms/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	VerifyDummy(password string)
}

// SessionIssuer writes and clears the session cookie
type SessionIssuer interface {
	Issue(w http.ResponseWriter, claims *session.Claims) error
	Clear(w http.ResponseWriter) error
	Now() time.Time
}

// AuthHandler handles sign-in, sign-up, sign-out and session introspection
type AuthHandler struct {
	users    database.UserRepositoryInterface
	hasher   PasswordHasher
	sessions SessionIssuer
	denylist revocation.Denylist
	events   audit.Sink
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler. denylist and events may be nil.
func NewAuthHandler(
	users database.UserRepositoryInterface,
	hasher PasswordHasher,
	sessions SessionIssuer,
	denylist revocation.Denylist,
	events audit.Sink,
	logger *zap.Logger,
) *AuthHandler {
	if events == nil {
		events = audit.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		denylist: denylist,
		events:   events,
		logger:   logger,
	}
}

// RegisterRoutes registers auth routes on the given router
// The router should already have the /api/auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/session", h.GetSession).Methods("GET")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.HandleFunc("/logout-all", h.LogoutAll).Methods("POST")
}

// RegisterCredentialRoutes registers the routes that accept passwords, so the
// caller can wrap them in rate limiting
func (h *AuthHandler) RegisterCredentialRoutes(r *mux.Router) {
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/signup", h.Signup).Methods("POST")
}

// SessionResponse is the body of GET /api/auth/session
type SessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *models.PublicUser `json:"user,omitempty"`
}

type authPayload struct {
	User models.PublicUser `json:"user"`
}

// Login verifies credentials and issues a session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.Normalize()

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			h.logger.Error("login_user_lookup_failed", zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "internal_error", "Sign-in is temporarily unavailable")
			return
		}
		// Equalise timing with the known-user path
		h.hasher.VerifyDummy(req.Password)
		h.rejectLogin(w, r, "", req.Email)
		return
	}

	ok, err := h.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		h.logger.Error("login_hash_unreadable",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
	if !ok {
		h.rejectLogin(w, r, user.ID.String(), req.Email)
		return
	}

	if !h.issueSession(w, user) {
		return
	}

	h.logger.Info("login_succeeded", zap.String("user_id", user.ID.String()))
	h.events.Record(r.Context(), audit.NewEvent(r, models.AuthEventLoginSucceeded, user.ID.String(), user.Email))
	respondJSON(w, http.StatusOK, authPayload{User: user.Public()})
}

func (h *AuthHandler) rejectLogin(w http.ResponseWriter, r *http.Request, userID, email string) {
	h.logger.Info("login_failed",
		zap.String("email", logpkg.MaskEmail(email)),
		zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), 64)),
	)
	h.events.Record(r.Context(), audit.NewEvent(r, models.AuthEventLoginFailed, userID, email))
	respondJSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
}

// Signup creates an account and signs it in
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req validation.SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.Normalize()

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.Error("signup_hash_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "internal_error", "Sign-up is temporarily unavailable")
		return
	}

	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			respondJSONError(w, http.StatusConflict, "email_taken", "An account with this email already exists")
			return
		}
		h.logger.Error("signup_create_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "internal_error", "Sign-up is temporarily unavailable")
		return
	}

	if !h.issueSession(w, user) {
		return
	}

	h.logger.Info("signup_succeeded", zap.String("user_id", user.ID.String()))
	h.events.Record(r.Context(), audit.NewEvent(r, models.AuthEventSignup, user.ID.String(), user.Email))
	respondJSON(w, http.StatusCreated, authPayload{User: user.Public()})
}

// issueSession writes a fresh session for user. On false a response has been sent.
func (h *AuthHandler) issueSession(w http.ResponseWriter, user *models.User) bool {
	claims := session.NewClaims(*database.IdentityFromUser(user), h.sessions.Now(), session.Lifetime)
	if err := h.sessions.Issue(w, claims); err != nil {
		if errors.Is(err, session.ErrCookieWrite) {
			h.logger.Error("session_not_delivered",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
			respondJSONError(w, http.StatusInternalServerError, "session_not_delivered", "Signed in, but the session could not be stored. Please try again")
			return false
		}
		h.logger.Error("session_issue_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "internal_error", "Sign-in is temporarily unavailable")
		return false
	}
	return true
}

// Logout clears the session cookie. It succeeds whether or not a session existed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := h.currentClaims(r)

	if err := h.sessions.Clear(w); err != nil {
		h.logger.Warn("session_clear_failed", zap.Error(err))
	}
	if claims != nil {
		h.events.Record(r.Context(), audit.NewEvent(r, models.AuthEventLogout, claims.SubjectID, claims.Email))
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// LogoutAll revokes every session of the caller, including this one
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := h.currentClaims(r)
	if claims == nil {
		respondJSONError(w, http.StatusUnauthorized, "unauthorized", "Not signed in")
		return
	}
	if h.denylist == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "revocation_unavailable", "Session revocation is not configured")
		return
	}

	if err := h.denylist.Revoke(r.Context(), claims.SubjectID, h.sessions.Now()); err != nil {
		h.logger.Error("session_revoke_failed",
			zap.String("user_id", logpkg.SanitizeUserID(claims.SubjectID)),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusServiceUnavailable, "revocation_unavailable", "Sessions could not be revoked. Please try again")
		return
	}
	if err := h.sessions.Clear(w); err != nil {
		h.logger.Warn("session_clear_failed", zap.Error(err))
	}

	h.events.Record(r.Context(), audit.NewEvent(r, models.AuthEventSessionsRevoked, claims.SubjectID, claims.Email))
	respondJSON(w, http.StatusOK, map[string]string{"message": "Signed out everywhere"})
}

// GetSession reports the caller's session. It always answers 200.
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{}
	if claims := h.currentClaims(r); claims != nil {
		resp.Authenticated = true
		resp.User = &models.PublicUser{
			ID:    claims.SubjectID,
			Email: claims.Email,
			Name:  claims.DisplayName,
			Image: claims.AvatarRef,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("session_response_encode_failed", zap.Error(err))
	}
}

// GetMe returns the stored record of the signed-in user
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := request.SessionFromContext(r)
	if claims == nil {
		respondJSONError(w, http.StatusUnauthorized, "unauthorized", "Not signed in")
		return
	}

	user, err := h.lookupUser(r.Context(), claims.SubjectID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			if clearErr := h.sessions.Clear(w); clearErr != nil {
				h.logger.Warn("session_clear_failed", zap.Error(clearErr))
			}
			respondJSONError(w, http.StatusUnauthorized, "unauthorized", "Account no longer exists")
			return
		}
		h.logger.Error("me_lookup_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "internal_error", "Could not load account")
		return
	}

	respondJSON(w, http.StatusOK, authPayload{User: user.Public()})
}

func (h *AuthHandler) lookupUser(ctx context.Context, subjectID string) (*models.User, error) {
	id, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, database.ErrUserNotFound
	}
	return h.users.GetByID(ctx, id)
}

// currentClaims returns the claims the access gate attached. The gate has
// already dropped expired, invalid and revoked sessions, so the cookie is
// never re-read here.
func (h *AuthHandler) currentClaims(r *http.Request) *session.Claims {
	return request.SessionFromContext(r)
}

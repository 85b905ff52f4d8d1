package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gartstein/certify/internal/certification/directory"
	"go.uber.org/zap"
)

// Authenticator checks a username and password pair.
type Authenticator interface {
	Authenticate(username, password string) (directory.User, error)
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned on a successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
}

// TokenHandler exchanges directory credentials for a signed token.
func TokenHandler(users Authenticator, secret string, ttl time.Duration, logger *zap.Logger) http.Handler {
	logger = logger.Named("token_handler")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req tokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		user, err := users.Authenticate(req.Username, req.Password)
		if errors.Is(err, directory.ErrInvalidCredentials) {
			logger.Info("Login refused", zap.String("username", req.Username))
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if err != nil {
			logger.Error("Authentication failed", zap.Error(err))
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}

		expiresAt := time.Now().Add(ttl).UTC()
		token, err := GenerateToken(user.Actor(), secret, ttl)
		if err != nil {
			logger.Error("Failed to sign token", zap.Error(err))
			http.Error(w, "failed to generate token", http.StatusInternalServerError)
			return
		}
		logger.Info("Token issued", zap.String("username", user.Username), zap.String("role", string(user.Role)))

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TokenResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			Username:  user.Username,
			Name:      user.Name,
			Role:      string(user.Role),
		}); err != nil {
			logger.Error("Failed to encode token", zap.Error(err))
		}
	})
}

package internal

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "smarttrader-api"

type JWTManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewJWTManager(secretKey string, ttl time.Duration) (*JWTManager, error) {
	if secretKey == "" {
		return nil, errors.New("JWT_SECRET_KEY is not set")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{secretKey: []byte(secretKey), ttl: ttl, now: time.Now}, nil
}

func (jm *JWTManager) GenerateToken(userID string) (string, time.Time, error) {
	now := jm.now()
	expiresAt := now.Add(jm.ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jm.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

func (jm *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jm.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(jm.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type tokenRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

// HandleGenerateToken issues a bearer token for the configured API password.
// Issuance is disabled when no password is configured.
func (api *API) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	if api.Password == "" {
		WriteError(w, http.StatusServiceUnavailable, "token issuance is disabled (API_PASSWORD not set)")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(api.Password)) != 1 {
		WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := api.JWT.GenerateToken(req.UserID)
	if err != nil {
		api.Log.Error().Err(err).Msg("token generation failed")
		WriteError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

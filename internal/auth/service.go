package auth

import (
	"context"
	"errors"
	"time"

	"github.com/herd-1807-capstone/api-routes/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	refreshCollection = "/auth/refresh"
)

type Service struct {
	secret []byte
	store  store.Store
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, st store.Store) *Service {
	return &Service{
		secret: []byte(secret),
		store:  st,
	}
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	entries, err := s.store.Query(ctx, "/users", "email", req.Email)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	if len(entries) == 0 {
		return User{}, TokenResponse{}, errors.New("invalid credentials")
	}

	var rec userRecord
	if err := entries[0].Decode(&rec); err != nil {
		return User{}, TokenResponse{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
		return User{}, TokenResponse{}, errors.New("invalid credentials")
	}

	user := User{
		ID:    entries[0].Key,
		Email: rec.Email,
		Name:  rec.Name,
		Role:  rec.Role,
		Tour:  rec.Tour,
	}
	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// CurrentUser loads the caller capability for a validated user id.
func (s *Service) CurrentUser(ctx context.Context, userID string) (User, error) {
	return loadUser(ctx, s.store, userID)
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := s.signToken(userID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := s.signToken(userID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	entries, err := s.store.Query(ctx, refreshCollection, "token", token)
	if err != nil || len(entries) == 0 {
		return "", errors.New("refresh token invalid")
	}
	var rec refreshRecord
	if err := entries[0].Decode(&rec); err != nil {
		return "", err
	}
	if rec.UserID != claims.UserID || time.Now().UnixMilli() > rec.ExpiresAt {
		return "", errors.New("refresh token invalid")
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) signToken(userID string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	rec := refreshRecord{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl).UnixMilli(),
	}
	return s.store.AtomicUpdate(ctx, map[string]any{
		store.Join(refreshCollection, uuid.NewString()): rec,
	})
}

func loadUser(ctx context.Context, st store.Store, userID string) (User, error) {
	var rec userRecord
	if err := st.Get(ctx, store.Join("users", userID), &rec); err != nil {
		return User{}, err
	}
	return User{
		ID:    userID,
		Email: rec.Email,
		Name:  rec.Name,
		Role:  rec.Role,
		Tour:  rec.Tour,
	}, nil
}

// HashPassword hashes a plaintext password for storage on a user record.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

package services

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/spKnowTech/plantpal-app/internal/config"
	"github.com/spKnowTech/plantpal-app/internal/models"
)

type AuthService interface {
	LoginUser(db *gorm.DB, email, password string) (*models.User, error)
	GenerateToken(db *gorm.DB, userID uuid.UUID) (string, string, error)
	RefreshToken(db *gorm.DB, refreshToken string) (string, string, int64, error)
	RevokeToken(db *gorm.DB, refreshToken string) error
}

type AuthServiceImpl struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(cfg config.JWTConfig) *AuthServiceImpl {
	if cfg.Secret == "" {
		cfg.Secret = config.DefaultJWTSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &AuthServiceImpl{
		secret:     cfg.Secret,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		return nil, err
	}
	if !VerifyPassword(user.Password, password) {
		return nil, gorm.ErrInvalidData
	}
	return &user, nil
}

func (s *AuthServiceImpl) GenerateToken(db *gorm.DB, userID uuid.UUID) (string, string, error) {
	secret := s.secret
	now := time.Now()

	accessTokenClaims := jwt.MapClaims{
		"user_id": userID.String(),
		"iat":     now.Unix(),
		"exp":     now.Add(s.accessTTL).Unix(),
		"iss":     "plantpal-backend",
		"aud":     "plantpal-users",
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessTokenClaims)
	accessTokenString, err := accessToken.SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate jti: %w", err)
	}

	refreshTokenExpiry := now.Add(s.refreshTTL)
	refreshTokenClaims := jwt.MapClaims{
		"user_id": userID.String(),
		"type":    "refresh",
		"jti":     jti.String(),
		"iat":     now.Unix(),
		"exp":     refreshTokenExpiry.Unix(),
		"iss":     "plantpal-backend",
		"aud":     "plantpal-users",
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshTokenClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	tokenRecord := models.Token{
		ID:           uuid.Must(uuid.NewV4()),
		UserID:       userID,
		JTI:          jti,
		RefreshToken: refreshTokenString,
		ExpiresAt:    refreshTokenExpiry,
	}

	if err := db.Create(&tokenRecord).Error; err != nil {
		return "", "", fmt.Errorf("failed to create token record: %w", err)
	}

	return accessTokenString, refreshTokenString, nil
}

func (s *AuthServiceImpl) RefreshToken(db *gorm.DB, refreshToken string) (string, string, int64, error) {
	secret := s.secret

	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", 0, fmt.Errorf("invalid refresh token claims")
	}

	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "refresh" {
		return "", "", 0, fmt.Errorf("invalid token type")
	}

	jtiStr, ok := claims["jti"].(string)
	if !ok {
		return "", "", 0, fmt.Errorf("missing jti in token")
	}

	jti, err := uuid.FromString(jtiStr)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid jti format: %w", err)
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return "", "", 0, fmt.Errorf("missing user_id in token")
	}

	userID, err := uuid.FromString(userIDStr)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid user_id format: %w", err)
	}

	var dbToken models.Token
	err = db.Where("jti = ? AND user_id = ? AND expires_at > ?", jti, userID, time.Now()).First(&dbToken).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", "", 0, fmt.Errorf("refresh token not found or expired")
		}
		return "", "", 0, fmt.Errorf("database error: %w", err)
	}

	accessToken, newRefreshToken, err := s.GenerateToken(db, userID)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate new tokens: %w", err)
	}

	// Rotation: the old refresh token is single-use.
	if err := db.Delete(&dbToken).Error; err != nil {
		return "", "", 0, fmt.Errorf("failed to delete old token: %w", err)
	}

	return accessToken, newRefreshToken, int64(s.accessTTL.Seconds()), nil
}

func (s *AuthServiceImpl) RevokeToken(db *gorm.DB, refreshToken string) error {
	secret := s.secret

	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}

	jtiStr, ok := claims["jti"].(string)
	if !ok {
		return fmt.Errorf("missing jti in token")
	}

	jti, err := uuid.FromString(jtiStr)
	if err != nil {
		return fmt.Errorf("invalid jti format: %w", err)
	}

	return db.Where("jti = ?", jti).Delete(&models.Token{}).Error
}

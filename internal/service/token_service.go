package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fitbook/trainer-crm-api/internal/models"
	"github.com/fitbook/trainer-crm-api/pkg/config"
	appErrors "github.com/fitbook/trainer-crm-api/pkg/errors"
)

// TokenService validates access tokens issued by the identity service.
type TokenService struct {
	config config.JWTConfig
}

// NewTokenService instantiates TokenService.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{config: cfg}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.TrainerID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing trainer identity")
	}

	return claims, nil
}

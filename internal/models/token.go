package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated trainer identity. Token issuance lives in
// a separate identity service; this API only validates and reads claims.
type JWTClaims struct {
	TrainerID string `json:"trainer_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload issued by the questionnaire platform.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

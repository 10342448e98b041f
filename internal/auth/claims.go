package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the operator token shape. Subject mirrors OperatorID.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
}

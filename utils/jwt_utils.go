package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"restaurant-service/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is what an auth token carries: who the caller is and which of
// the four fixed roles they act as.
type Identity struct {
	UserID string
	Role   models.Role
}

// NewAuthToken signs a bearer token for a user. Issued by the gateway on
// login; also handy in tests.
func NewAuthToken(secret []byte, id Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.UserID,
		"role": string(id.Role),
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseAuthToken validates a bearer token and extracts the identity.
func ParseAuthToken(secret []byte, tokenString string) (Identity, error) {
	claims, err := parseHS256(secret, tokenString)
	if err != nil {
		return Identity{}, err
	}
	sub, _ := claims["sub"].(string)
	roleStr, _ := claims["role"].(string)
	role, ok := models.ParseRole(roleStr)
	if sub == "" || !ok {
		return Identity{}, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}
	return Identity{UserID: sub, Role: role}, nil
}

// NewTableToken signs the short-lived credential encoded into a table's QR
// code. Presenting it at check-in is the only trusted way to bind a table.
func NewTableToken(secret []byte, tableID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"table_id": tableID,
		"exp":      time.Now().Add(ttl).Unix(),
		"iat":      time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseTableToken validates a QR table token and returns the table id.
func ParseTableToken(secret []byte, tokenString string) (string, error) {
	claims, err := parseHS256(secret, tokenString)
	if err != nil {
		return "", err
	}
	tableID, _ := claims["table_id"].(string)
	if tableID == "" {
		return "", fmt.Errorf("%w: missing table_id", ErrInvalidToken)
	}
	return tableID, nil
}

func parseHS256(secret []byte, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

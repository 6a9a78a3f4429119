package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

const tokenIssuer = "content-publisher"

var ErrInvalidToken = errors.New("invalid token")

type TriggerClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token allowing operator to call the manual trigger.
func GenerateToken(secretKey, operator string, tokenDuration time.Duration) (string, error) {
	now := time.Now()
	claims := TriggerClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		log.Info(err.Error())
		return "", err
	}

	return signedToken, nil
}

func ValidateToken(secretKey, tokenString string) (*TriggerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TriggerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		log.Info(err.Error())
		return nil, err
	}

	if claims, ok := token.Claims.(*TriggerClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

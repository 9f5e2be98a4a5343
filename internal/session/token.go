package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "jobportal"

var ErrInvalidToken = errors.New("invalid handoff token")

type handoffClaims struct {
	Handoff Record `json:"handoff"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies short-lived handoff tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an HS256 issuer. ttl <= 0 selects 15 minutes.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("handoff secret is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs rec.
func (i *Issuer) Issue(rec Record) (string, error) {
	now := i.now()
	claims := handoffClaims{
		Handoff: rec,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(rec.JobID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign handoff token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its record.
func (i *Issuer) Parse(token string) (Record, error) {
	claims := &handoffClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Record{}, ErrInvalidToken
	}
	if claims.Subject != strconv.Itoa(claims.Handoff.JobID) {
		return Record{}, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims.Handoff, nil
}

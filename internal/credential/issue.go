package credential

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer signs HS256 access credentials. The gateway itself never signs; the
// development backend and tests do.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer. A nil clock means time.Now.
func NewIssuer(secret string, ttl time.Duration, now func() time.Time) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("credential: signing secret required")
	}
	if ttl <= 0 {
		return nil, errors.New("credential: ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue signs a credential carrying the identity claims.
func (i *Issuer) Issue(identity Identity) (string, error) {
	return i.IssueWithExpiry(identity, i.now().Add(i.ttl))
}

// IssueWithExpiry signs a credential expiring at exp.
func (i *Issuer) IssueWithExpiry(identity Identity, exp time.Time) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:    identity.ID,
		Username:  identity.Username,
		Email:     identity.Email,
		Role:      string(identity.Role),
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify parses token checking its signature and expiry.
func (i *Issuer) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return Claims{}, err
	}
	return claims, nil
}

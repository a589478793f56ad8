package credential

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/propertyhub/propertyhub/internal/rbac"
)

var (
	// ErrMalformed indicates the credential could not be parsed into claims.
	ErrMalformed = errors.New("credential: malformed")
	// ErrExpired indicates the credential expiry is at or before now.
	ErrExpired = errors.New("credential: expired")
)

// DecodeError reports why a credential could not become an Identity.
type DecodeError struct {
	Reason error
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Reason, e.Err)
	}
	return e.Reason.Error()
}

// Unwrap exposes both the reason sentinel and the underlying parse error.
func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// Claims mirrors the identity claims embedded in access credentials.
type Claims struct {
	UserID    int64  `json:"user_id,omitempty"`
	LegacyID  int64  `json:"userID,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	jwt.RegisteredClaims
}

// Decoder turns credentials into identities locally, without the signing key.
type Decoder struct {
	now    func() time.Time
	parser *jwt.Parser
}

// NewDecoder returns a Decoder using now as its clock; nil means time.Now.
func NewDecoder(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{now: now, parser: jwt.NewParser()}
}

// Decode parses token and maps its claims to an Identity.
func (d *Decoder) Decode(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, &DecodeError{Reason: ErrMalformed, Err: errors.New("empty credential")}
	}
	var claims Claims
	if _, _, err := d.parser.ParseUnverified(token, &claims); err != nil {
		return Identity{}, &DecodeError{Reason: ErrMalformed, Err: err}
	}
	if claims.ExpiresAt == nil {
		return Identity{}, &DecodeError{Reason: ErrMalformed, Err: errors.New("missing exp claim")}
	}
	expiresAt := claims.ExpiresAt.Time.UTC()
	if !expiresAt.After(d.now()) {
		return Identity{}, &DecodeError{Reason: ErrExpired}
	}
	if strings.TrimSpace(claims.Role) == "" {
		return Identity{}, &DecodeError{Reason: ErrMalformed, Err: errors.New("missing role claim")}
	}

	id := claims.UserID
	if id == 0 {
		id = claims.LegacyID
	}
	return Identity{
		ID:        id,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      rbac.Role(claims.Role),
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Name:      DisplayName(claims.FirstName, claims.LastName, claims.Username),
		ExpiresAt: expiresAt,
	}, nil
}

// Expired reports whether identity's credential has reached its expiry.
func (d *Decoder) Expired(identity Identity) bool {
	return !identity.ExpiresAt.After(d.now())
}

package shared

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
)

var (
	// ErrCSRFTokenMissing is returned when a form or header carries no token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch is returned when the token does not match the session.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

const (
	// CSRFSessionKey is the session value holding the token.
	CSRFSessionKey = "csrf_token"
	// CSRFFormField is the form field name carrying the token.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token for script clients.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager issues and verifies synchronizer tokens bound to a browser session.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the session token, minting one on first use.
func (m *CSRFManager) EnsureToken(sess *Session) string {
	if sess == nil {
		return ""
	}
	if token := sess.Get(CSRFSessionKey); token != "" {
		return token
	}
	return m.RotateToken(sess)
}

// RotateToken replaces the session token. Call it whenever the signed-in
// identity changes.
func (m *CSRFManager) RotateToken(sess *Session) string {
	nonce := make([]byte, 16)
	_, _ = rand.Read(nonce)
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sess.ID))
	_, _ = mac.Write(nonce)
	token := base64.RawURLEncoding.EncodeToString(append(nonce, mac.Sum(nil)...))
	sess.Set(CSRFSessionKey, token)
	return token
}

// VerifyToken compares the supplied token with the session token.
func (m *CSRFManager) VerifyToken(sess *Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	expected := sess.Get(CSRFSessionKey)
	if expected == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

// RequestToken reads the token from the form or the header.
func RequestToken(r *http.Request) string {
	if token := r.PostFormValue(CSRFFormField); token != "" {
		return token
	}
	return r.Header.Get(CSRFHeader)
}

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/regsight/regsight/internal/tenant"
)

// Authenticator validates API keys and extracts tenant information.
type Authenticator struct {
	mu      sync.RWMutex
	tenants map[string]*tenant.Tenant // keyhash -> tenant
}

// NewAuthenticator creates a new authenticator with tenant mappings.
func NewAuthenticator(tenants []*tenant.Tenant) *Authenticator {
	auth := &Authenticator{}
	auth.Reload(tenants)
	return auth
}

// Reload replaces the tenant mappings, typically after a config reload.
func (a *Authenticator) Reload(tenants []*tenant.Tenant) {
	index := make(map[string]*tenant.Tenant)
	for _, t := range tenants {
		for _, key := range t.APIKeys {
			index[key.KeyHash] = t
		}
	}

	a.mu.Lock()
	a.tenants = index
	a.mu.Unlock()
}

// ValidateAPIKey validates an API key and returns the associated tenant.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*tenant.Tenant, error) {
	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	a.mu.RLock()
	t, ok := a.tenants[keyHash]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("invalid API key")
	}

	// Constant-time comparison to prevent timing attacks
	for _, key := range t.APIKeys {
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(key.KeyHash)) == 1 {
			return t, nil
		}
	}

	return nil, fmt.Errorf("invalid API key")
}

// ExtractAPIKey extracts the API key from the Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

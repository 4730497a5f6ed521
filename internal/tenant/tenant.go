package tenant

// Tenant represents a client organization using the service: a regulated
// startup or a regulator team with its own query history.
type Tenant struct {
	ID      string
	Name    string
	APIKeys []APIKey
}

// APIKey represents an API key for a tenant.
type APIKey struct {
	KeyHash     string
	Description string
}

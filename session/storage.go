package session

import "context"

// Storage is a durable string key/value store.
type Storage interface {
	// Get reports ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete succeeds when the key is already absent.
	Delete(ctx context.Context, key string) error
}

const (
	DefaultNamespace = "shop.session"

	tokenSuffix = ".token"
	userSuffix  = ".user"
)

// Keys returns the token and user keys for a namespace.
func Keys(namespace string) (tokenKey, userKey string) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + tokenSuffix, namespace + userSuffix
}

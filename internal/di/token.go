package di

// Token is a typed service key.
type Token[T any] struct {
	key string
}

// NewToken creates a token for services of type T.
func NewToken[T any](key string) Token[T] {
	return Token[T]{key: key}
}

// Key returns the registry key.
func (t Token[T]) Key() string {
	return t.key
}

// RegisterToken registers a lazy, typed factory.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.key, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves a typed service. A factory may return nil for an
// optional dependency; GetToken then yields the zero T.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v := sr.Get(token.key)
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

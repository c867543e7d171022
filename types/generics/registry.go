package generics

import "context"

// Registry is the common surface of the in-memory registries.
type Registry[T any] interface {
	Get(string) (T, bool)
	GetAll() map[string]T
	Delete(string)

	Shutdown(context.Context) error
}

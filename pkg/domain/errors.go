// Package domain holds error kinds shared by aggregates and stores. Aggregate
// specific errors live with their aggregate.
package domain

import "errors"

var (
	// ErrNotFound marks a lookup that matched nothing in a store.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists marks a write that collided with an existing key.
	ErrAlreadyExists = errors.New("record already exists")
)

// Package services defines the business logic for the animals collection.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrAnimalNotFound indicates that the requested animal does not exist or
	// has been deleted.
	ErrAnimalNotFound = errors.New("animal not found")

	// ErrNameRequired is returned when a create/replace request carries a
	// blank name.
	ErrNameRequired = errors.New("name is required")

	// ErrTypeRequired is returned when a create/replace request carries a
	// blank type.
	ErrTypeRequired = errors.New("type is required")

	// ErrFieldTooLong is returned when name or type exceed the configured
	// rune limit.
	ErrFieldTooLong = errors.New("field too long")

	// ErrEmptyPatch is returned when a partial update supplies no fields.
	ErrEmptyPatch = errors.New("no fields to update")
)

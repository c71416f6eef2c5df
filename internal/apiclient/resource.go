package apiclient

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// AnimalsPath is the collection path of the animals resource.
const AnimalsPath = "/animals"

// Resource binds the API helpers to one collection path.
type Resource[T any] struct {
	api  *API
	path string
	// validate, when set, checks a create body before anything is sent.
	validate func(T) error
}

// NewResource returns a Resource for the collection at path (e.g. "/animals").
func NewResource[T any](api *API, path string) *Resource[T] {
	return &Resource[T]{api: api, path: "/" + strings.Trim(path, "/")}
}

// NewAnimals returns the /animals resource. Create requires name and type.
func NewAnimals(api *API) *Resource[Animal] {
	r := NewResource[Animal](api, AnimalsPath)
	r.validate = func(a Animal) error {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Type) == "" {
			return errNameTypeRequired
		}
		return nil
	}
	return r
}

type validationError string

func (e validationError) Error() string { return string(e) }

const errNameTypeRequired = validationError("name and type are required")

// Path returns the collection path.
func (r *Resource[T]) Path() string { return r.path }

func (r *Resource[T]) item(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

// FetchAll lists the collection.
func (r *Resource[T]) FetchAll(ctx context.Context, opts *RequestOptions) (Envelope[[]T], error) {
	return Get[[]T](ctx, r.api, r.path, opts)
}

// FetchOne fetches a single item by id.
func (r *Resource[T]) FetchOne(ctx context.Context, id int64, opts *RequestOptions) (Envelope[T], error) {
	return Get[T](ctx, r.api, r.item(id), opts)
}

// Create posts a new item.
func (r *Resource[T]) Create(ctx context.Context, body T, opts *RequestOptions) (Envelope[T], error) {
	if r.validate != nil {
		if err := r.validate(body); err != nil {
			return Envelope[T]{}, r.api.clientFailure(r.api.BaseURL+r.path, err.Error())
		}
	}
	return Post[T](ctx, r.api, r.path, body, opts)
}

// Replace overwrites the item with id.
func (r *Resource[T]) Replace(ctx context.Context, id int64, body T, opts *RequestOptions) (Envelope[T], error) {
	return Put[T](ctx, r.api, r.item(id), body, opts)
}

// Patch updates only the fields present in body. Pass a map or a struct
// with omitempty fields to send a partial document.
func (r *Resource[T]) Patch(ctx context.Context, id int64, body any, opts *RequestOptions) (Envelope[T], error) {
	return Patch[T](ctx, r.api, r.item(id), body, opts)
}

// Remove deletes the item with id. A 204 yields an envelope with nil Data.
func (r *Resource[T]) Remove(ctx context.Context, id int64, opts *RequestOptions) (Envelope[json.RawMessage], error) {
	return Delete[json.RawMessage](ctx, r.api, r.item(id), opts)
}

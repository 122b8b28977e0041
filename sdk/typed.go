package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/gen"
)

// Resource gives typed access to one PokeAPI endpoint. T is the model the
// endpoint's detail responses decode into.
//
// The SDK exposes the endpoints it uses through Client fields. Any other
// endpoint can be reached the same way:
//
//	type Berry struct {
//	    ID   int    `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	berries := sdk.NewResource[Berry](client, "berry")
//	cheri, err := berries.Get(ctx, "cheri")
//	page, err := berries.List(ctx, sdk.ListParams{Limit: 10})
type Resource[T any] struct {
	client   *Client
	endpoint string
}

// NewResource creates a typed accessor for endpoint, e.g. "pokemon".
func NewResource[T any](client *Client, endpoint string) *Resource[T] {
	return &Resource[T]{
		client:   client,
		endpoint: strings.Trim(endpoint, "/"),
	}
}

// Endpoint returns the endpoint name.
func (r *Resource[T]) Endpoint() string {
	return r.endpoint
}

// Get fetches one resource by id or name.
func (r *Resource[T]) Get(ctx context.Context, idOrName string, opts ...RequestOption) (*T, error) {
	path, err := r.itemPath(idOrName)
	if err != nil {
		return nil, err
	}

	var out T
	if err := r.client.getInto(ctx, path, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByID fetches one resource by numeric id.
func (r *Resource[T]) GetByID(ctx context.Context, id int, opts ...RequestOption) (*T, error) {
	return r.Get(ctx, strconv.Itoa(id), opts...)
}

// GetJSON fetches one resource as a JSON tree, ready for expansion.
func (r *Resource[T]) GetJSON(ctx context.Context, idOrName string, opts ...RequestOption) (gen.Node, error) {
	path, err := r.itemPath(idOrName)
	if err != nil {
		return nil, err
	}
	return r.client.GetJSON(ctx, path, opts...)
}

// List fetches one page of references.
func (r *Resource[T]) List(ctx context.Context, params ListParams, opts ...RequestOption) (*Page[NamedAPIResource], error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return r.list(ctx, params.values(), opts...)
}

func (r *Resource[T]) list(ctx context.Context, query url.Values, opts ...RequestOption) (*Page[NamedAPIResource], error) {
	page := &Page[NamedAPIResource]{}
	if err := r.client.getInto(ctx, withQuery("/"+r.endpoint, query), page, opts...); err != nil {
		return nil, err
	}
	page.fetch = func(ctx context.Context, q url.Values) (*Page[NamedAPIResource], error) {
		return r.list(ctx, q, opts...)
	}
	return page, nil
}

func (r *Resource[T]) itemPath(idOrName string) (string, error) {
	id := strings.TrimSpace(idOrName)
	if id == "" {
		return "", invalidArgument("%s id or name cannot be empty", r.endpoint)
	}
	return buildPath("/"+r.endpoint+"/{0}", id), nil
}

// ListParams selects a page of a list endpoint.
type ListParams struct {
	// Limit is the page size. Zero means 20.
	Limit int
	// Offset is the number of items to skip.
	Offset int
}

func (p *ListParams) validate() error {
	if p.Limit < 0 || p.Offset < 0 {
		return invalidArgument("limit and offset must not be negative")
	}
	if p.Limit == 0 {
		p.Limit = 20
	}
	return nil
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("offset", strconv.Itoa(p.Offset))
	return v
}

// decodeNode converts a JSON tree into a typed value.
func decodeNode(n gen.Node, dest interface{}) error {
	if n == nil {
		return NewError(ErrorTypeDecode, "empty document", nil)
	}
	data, err := json.Marshal(n.Simplify())
	if err != nil {
		return NewError(ErrorTypeDecode, "failed to encode document", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return NewError(ErrorTypeDecode, fmt.Sprintf("failed to decode document into %T", dest), err)
	}
	return nil
}

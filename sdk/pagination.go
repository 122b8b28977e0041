package sdk

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
)

// Page is one page of a PokeAPI list endpoint.
//
// Example:
//
//	page, err := client.Pokemon.List(ctx, sdk.ListParams{Limit: 50})
//	for page != nil && err == nil {
//	    for _, p := range page.Results {
//	        fmt.Println(p.Name)
//	    }
//	    if !page.HasNext() {
//	        break
//	    }
//	    page, err = page.GetNext(ctx)
//	}
//
// All walks every remaining page for you:
//
//	for p, err := range page.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(p.Name)
//	}
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`

	fetch func(ctx context.Context, query url.Values) (*Page[T], error)
}

// HasNext reports whether a next page exists.
func (p *Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// HasPrevious reports whether a previous page exists.
func (p *Page[T]) HasPrevious() bool {
	return p.Previous != nil && *p.Previous != ""
}

// NextPageInfo returns the query parameters of the next page, or nil.
// All-digit values are returned as ints.
func (p *Page[T]) NextPageInfo() map[string]interface{} {
	if !p.HasNext() {
		return nil
	}
	return pageInfo(*p.Next)
}

// PreviousPageInfo returns the query parameters of the previous page, or nil.
func (p *Page[T]) PreviousPageInfo() map[string]interface{} {
	if !p.HasPrevious() {
		return nil
	}
	return pageInfo(*p.Previous)
}

// GetNext fetches the next page of the same endpoint. It returns ErrNoPage
// on the last page.
func (p *Page[T]) GetNext(ctx context.Context) (*Page[T], error) {
	if !p.HasNext() {
		return nil, fmt.Errorf("%w: no next page", ErrNoPage)
	}
	return p.follow(ctx, *p.Next)
}

// GetPrevious fetches the previous page of the same endpoint. It returns
// ErrNoPage on the first page.
func (p *Page[T]) GetPrevious(ctx context.Context) (*Page[T], error) {
	if !p.HasPrevious() {
		return nil, fmt.Errorf("%w: no previous page", ErrNoPage)
	}
	return p.follow(ctx, *p.Previous)
}

// All iterates over the items of this page and every page after it. An
// error ends the iteration after being yielded once.
func (p *Page[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		page := p
		for {
			for _, item := range page.Results {
				if !yield(item, nil) {
					return
				}
			}
			if !page.HasNext() {
				return
			}

			next, err := page.GetNext(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			page = next
		}
	}
}

func (p *Page[T]) follow(ctx context.Context, link string) (*Page[T], error) {
	if p.fetch == nil {
		return nil, fmt.Errorf("%w: page is not attached to a client", ErrNoPage)
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil, NewError(ErrorTypeDecode, fmt.Sprintf("invalid page link %q", link), err)
	}
	return p.fetch(ctx, u.Query())
}

func pageInfo(link string) map[string]interface{} {
	u, err := url.Parse(link)
	if err != nil {
		return map[string]interface{}{}
	}

	info := make(map[string]interface{})
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		if isDigits(value) {
			if n, err := strconv.Atoi(value); err == nil {
				info[key] = n
				continue
			}
		}
		info[key] = value
	}
	return info
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

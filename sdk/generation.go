package sdk

import (
	"context"

	"github.com/ohler55/ojg/gen"
)

// GenerationService accesses the /generation endpoint.
type GenerationService struct {
	client *Client
}

func (s *GenerationService) resource() *Resource[Generation] {
	return NewResource[Generation](s.client, "generation")
}

// Get fetches a generation by id or name, e.g. "1" or "generation-i".
func (s *GenerationService) Get(ctx context.Context, idOrName string, opts ...RequestOption) (*Generation, error) {
	return s.resource().Get(ctx, idOrName, opts...)
}

// GetJSON fetches a generation as a JSON tree.
func (s *GenerationService) GetJSON(ctx context.Context, idOrName string, opts ...RequestOption) (gen.Node, error) {
	return s.resource().GetJSON(ctx, idOrName, opts...)
}

// List fetches one page of generation references.
func (s *GenerationService) List(ctx context.Context, params ListParams, opts ...RequestOption) (*Page[NamedAPIResource], error) {
	return s.resource().List(ctx, params, opts...)
}

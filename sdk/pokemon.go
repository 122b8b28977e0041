package sdk

import (
	"context"

	"github.com/ohler55/ojg/gen"
)

// PokemonService accesses the /pokemon endpoint.
type PokemonService struct {
	client *Client
}

func (s *PokemonService) resource() *Resource[Pokemon] {
	return NewResource[Pokemon](s.client, "pokemon")
}

// Get fetches a pokemon by id or name.
//
// Example:
//
//	p, err := client.Pokemon.Get(ctx, "pikachu", sdk.WithCacheTTL(5*time.Minute))
func (s *PokemonService) Get(ctx context.Context, idOrName string, opts ...RequestOption) (*Pokemon, error) {
	return s.resource().Get(ctx, idOrName, opts...)
}

// GetJSON fetches a pokemon as a JSON tree, ready for expansion.
func (s *PokemonService) GetJSON(ctx context.Context, idOrName string, opts ...RequestOption) (gen.Node, error) {
	return s.resource().GetJSON(ctx, idOrName, opts...)
}

// List fetches one page of pokemon references.
func (s *PokemonService) List(ctx context.Context, params ListParams, opts ...RequestOption) (*Page[NamedAPIResource], error) {
	return s.resource().List(ctx, params, opts...)
}

// Species fetches a /pokemon-species resource.
func (s *PokemonService) Species(ctx context.Context, idOrName string, opts ...RequestOption) (*PokemonSpecies, error) {
	return NewResource[PokemonSpecies](s.client, "pokemon-species").Get(ctx, idOrName, opts...)
}

// Encounters fetches the wild encounter locations of a pokemon.
func (s *PokemonService) Encounters(ctx context.Context, idOrName string, opts ...RequestOption) ([]LocationAreaEncounter, error) {
	path, err := s.resource().itemPath(idOrName)
	if err != nil {
		return nil, err
	}
	var out []LocationAreaEncounter
	if err := s.client.getInto(ctx, path+"/encounters", &out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

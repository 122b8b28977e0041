package sdk

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ohler55/ojg/gen"
	"github.com/ohler55/ojg/jp"
	"golang.org/x/sync/errgroup"
)

var (
	listNames       = jp.MustParseString("results[*].name")
	membershipNames = jp.MustParseString("pokemon[*].pokemon.name")
)

// hydrateConcurrency bounds parallel detail fetches when a filter needs them.
const hydrateConcurrency = 6

// SearchService filters pokemon and generations client side. Results are
// windowed by Offset and Limit; Count is the number of matches before
// windowing and the pages carry no links.
type SearchService struct {
	client *Client
}

// PokemonSearch filters pokemon. Empty fields do not filter.
type PokemonSearch struct {
	NamePrefix string
	Type       string
	Ability    string
	Limit      int
	Offset     int
}

// GenerationSearch filters generations. Empty fields do not filter.
type GenerationSearch struct {
	NamePrefix string
	Region     string
	Limit      int
	Offset     int
}

// Pokemon returns the pokemon matching every given filter, sorted by name.
//
// Example:
//
//	page, err := client.Search.Pokemon(ctx, sdk.PokemonSearch{
//	    Type:       "fire",
//	    NamePrefix: "char",
//	})
func (s *SearchService) Pokemon(ctx context.Context, q PokemonSearch) (*Page[NamedAPIResource], error) {
	params := ListParams{Limit: q.Limit, Offset: q.Offset}
	if err := params.validate(); err != nil {
		return nil, err
	}

	base, err := s.names(ctx, "/pokemon?limit=10000", listNames)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(base))
	for _, n := range base {
		names[n] = struct{}{}
	}

	if q.Type != "" {
		if err := s.intersect(ctx, names, buildPath("/type/{0}", q.Type)); err != nil {
			return nil, err
		}
	}
	if q.Ability != "" {
		if err := s.intersect(ctx, names, buildPath("/ability/{0}", q.Ability)); err != nil {
			return nil, err
		}
	}

	prefix := strings.ToLower(q.NamePrefix)
	ordered := make([]string, 0, len(names))
	for n := range names {
		if strings.HasPrefix(n, prefix) {
			ordered = append(ordered, n)
		}
	}
	slices.Sort(ordered)

	results := make([]NamedAPIResource, 0, params.Limit)
	for _, n := range window(ordered, params) {
		results = append(results, NamedAPIResource{
			Name: n,
			URL:  s.client.BaseURL() + "/pokemon/" + n,
		})
	}
	return &Page[NamedAPIResource]{Count: len(ordered), Results: results}, nil
}

// Generation returns the generations matching every given filter, in
// PokeAPI order. The region filter fetches each candidate generation.
func (s *SearchService) Generation(ctx context.Context, q GenerationSearch) (*Page[NamedAPIResource], error) {
	params := ListParams{Limit: q.Limit, Offset: q.Offset}
	if err := params.validate(); err != nil {
		return nil, err
	}

	var all Page[NamedAPIResource]
	if err := s.client.getInto(ctx, "/generation?limit=1000", &all); err != nil {
		return nil, err
	}

	prefix := strings.ToLower(q.NamePrefix)
	items := make([]NamedAPIResource, 0, len(all.Results))
	for _, r := range all.Results {
		if strings.HasPrefix(strings.ToLower(r.Name), prefix) {
			items = append(items, r)
		}
	}

	if q.Region != "" {
		hydrated := make([]*Generation, len(items))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(hydrateConcurrency)
		for i, r := range items {
			g.Go(func() error {
				generation, err := s.client.Generation.Get(gctx, r.Name)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", r.Name, err)
				}
				hydrated[i] = generation
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		items = items[:0]
		for _, generation := range hydrated {
			if strings.EqualFold(generation.MainRegion.Name, q.Region) {
				items = append(items, NamedAPIResource{
					Name: generation.Name,
					URL:  fmt.Sprintf("%s/generation/%d", s.client.BaseURL(), generation.ID),
				})
			}
		}
	}

	return &Page[NamedAPIResource]{Count: len(items), Results: window(items, params)}, nil
}

// intersect keeps only the names listed as members of the type or ability at path.
func (s *SearchService) intersect(ctx context.Context, names map[string]struct{}, path string) error {
	members, err := s.names(ctx, path, membershipNames)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(members))
	for _, m := range members {
		keep[m] = struct{}{}
	}
	for n := range names {
		if _, ok := keep[n]; !ok {
			delete(names, n)
		}
	}
	return nil
}

func (s *SearchService) names(ctx context.Context, path string, x jp.Expr) ([]string, error) {
	doc, err := s.client.GetJSON(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, v := range x.Get(doc) {
		if name, ok := asString(v); ok && name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

func window[T any](items []T, p ListParams) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := min(p.Offset+p.Limit, len(items))
	return items[p.Offset:end]
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case gen.String:
		return string(s), true
	case string:
		return s, true
	default:
		return "", false
	}
}

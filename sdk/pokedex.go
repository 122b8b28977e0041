package sdk

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/birbparty/pokenest/expand"
	"github.com/ohler55/ojg/gen"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// detailExpandPaths are the references expanded for a detail view.
var detailExpandPaths = []string{"moves.move", "types.type", "abilities.ability", "species", "forms"}

const (
	detailExpandBudget = 50
	defaultConcurrency = 6
)

// PokedexService builds rankings tables and detail pages from pokedexes.
type PokedexService struct {
	client *Client
}

// RankingsRequest selects a pokedex, directly or through its generation,
// and the stat to rank by.
type RankingsRequest struct {
	// Pokedex is a pokedex name such as "kanto" or "national".
	Pokedex string
	// Generation selects the main pokedex of a generation's region.
	Generation int
	// SortBy is "total" (default) or a stat name.
	SortBy string
	// SpritePreference is accepted for symmetry with DetailRequest; rankings
	// always use the generation's sprites.
	SpritePreference string
	// Concurrency bounds parallel fetches. Default: 6
	Concurrency int
}

// DetailRequest selects a pokedex and one of its pokemon.
type DetailRequest struct {
	Pokedex    string
	Generation int
	// Number is a regional entry number, or a national number when the
	// pokedex has no such entry.
	Number int
	// Name is a species name.
	Name string
	// VersionGroup restricts the move lists to one version group. When
	// empty, every version group of the generation is used.
	VersionGroup     string
	SpritePreference string
	Concurrency      int
}

func checkPokedexSelector(pokedex string, generation int) error {
	switch {
	case pokedex == "" && generation == 0:
		return invalidArgument("either pokedex or generation must be provided")
	case pokedex != "" && generation != 0:
		return invalidArgument("pokedex and generation are mutually exclusive")
	case generation < 0:
		return invalidArgument("generation must be positive")
	}
	return nil
}

// ResolveGeneration returns the main pokedex of a generation's region.
func (s *PokedexService) ResolveGeneration(ctx context.Context, generation int) (string, error) {
	g, err := s.client.Generation.Get(ctx, strconv.Itoa(generation))
	if err != nil {
		if IsNotFound(err) {
			return "", NewError(ErrorTypeValidation, fmt.Sprintf("generation %d not found", generation), err)
		}
		return "", fmt.Errorf("error resolving generation %d: %w", generation, err)
	}
	if g.MainRegion.Name == "" {
		return "", invalidArgument("generation %d has no main region", generation)
	}
	pokedex, ok := RegionPokedex(g.MainRegion.Name)
	if !ok {
		return "", invalidArgument("no pokedex mapping found for region %s", g.MainRegion.Name)
	}
	return pokedex, nil
}

func (s *PokedexService) selectPokedex(ctx context.Context, pokedex string, generation int) (string, int, error) {
	if err := checkPokedexSelector(pokedex, generation); err != nil {
		return "", 0, err
	}
	if generation != 0 {
		name, err := s.ResolveGeneration(ctx, generation)
		return name, generation, err
	}
	return pokedex, GenerationForPokedex(pokedex), nil
}

// Rankings returns every pokemon of a pokedex with its base stats, sorted
// descending by req.SortBy and ranked from 1. Pokemon that cannot be
// fetched are left out. Ties keep pokedex order.
//
// Example:
//
//	rows, err := client.Pokedex.Rankings(ctx, sdk.RankingsRequest{
//	    Generation: 1,
//	    SortBy:     "speed",
//	})
func (s *PokedexService) Rankings(ctx context.Context, req RankingsRequest) ([]PokedexRankRow, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}
	if req.SortBy == "" {
		req.SortBy = "total"
	}
	if !ValidSortBy(req.SortBy) {
		return nil, invalidArgument("sort_by must be one of: total, %s", strings.Join(rankingStats, ", "))
	}

	pokedex, generation, err := s.selectPokedex(ctx, req.Pokedex, req.Generation)
	if err != nil {
		return nil, err
	}

	var dex Pokedex
	if err := s.client.getInto(ctx, buildPath("/pokedex/{0}", pokedex), &dex); err != nil {
		return nil, err
	}

	rows := make([]*PokedexRankRow, len(dex.PokemonEntries))
	var g errgroup.Group
	g.SetLimit(concurrencyOr(req.Concurrency))
	for i, entry := range dex.PokemonEntries {
		if entry.PokemonSpecies.Name == "" {
			continue
		}
		g.Go(func() error {
			row, err := s.rankRow(ctx, entry, generation)
			if err != nil {
				s.debug(err, "Skipping pokedex entry", logrus.Fields{
					"pokedex": pokedex,
					"species": entry.PokemonSpecies.Name,
				})
				return nil
			}
			rows[i] = row
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]PokedexRankRow, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}

	key := func(r PokedexRankRow) int {
		if req.SortBy == "total" {
			return r.TotalBaseStat
		}
		return r.BaseStats[req.SortBy]
	}
	slices.SortStableFunc(out, func(a, b PokedexRankRow) int {
		return cmp.Compare(key(b), key(a))
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (s *PokedexService) rankRow(ctx context.Context, entry PokemonEntry, generation int) (*PokedexRankRow, error) {
	species := entry.PokemonSpecies.Name

	p, err := s.client.Pokemon.Get(ctx, species)
	if err != nil {
		return nil, err
	}
	sp, err := s.client.Pokemon.Species(ctx, species)
	if err != nil {
		return nil, err
	}

	name := sp.Name
	if name == "" {
		name = species
	}
	regional := entry.EntryNumber
	sprite, _ := PickSpritesForGeneration(p.Sprites, generation)

	return &PokedexRankRow{
		RegionalNo:    &regional,
		NationalNo:    sp.ID,
		Name:          name,
		Types:         CollectTypes(p),
		BaseStats:     BaseStats(p),
		TotalBaseStat: TotalBaseStat(p),
		SpriteURL:     sprite,
	}, nil
}

// Detail builds the entry page of one pokemon. The pokemon's moves, types,
// abilities, species and forms are expanded in one pass so type matchups
// and move data come from the expansion rather than separate requests.
// Evolution chain and locations are optional and left empty when they
// cannot be fetched.
func (s *PokedexService) Detail(ctx context.Context, req DetailRequest) (*PokedexDetailView, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}
	switch {
	case req.Number == 0 && req.Name == "":
		return nil, invalidArgument("either number or name must be provided")
	case req.Number != 0 && req.Name != "":
		return nil, invalidArgument("number and name are mutually exclusive")
	case req.Number < 0:
		return nil, invalidArgument("number must be positive")
	}

	pokedex, generation, err := s.selectPokedex(ctx, req.Pokedex, req.Generation)
	if err != nil {
		return nil, err
	}

	speciesID := req.Name
	if speciesID == "" {
		var dex Pokedex
		if err := s.client.getInto(ctx, buildPath("/pokedex/{0}", pokedex), &dex); err != nil {
			return nil, err
		}
		speciesID = ResolveNumber(dex.PokemonEntries, req.Number)
	}

	species, err := s.client.Pokemon.Species(ctx, speciesID)
	if err != nil {
		return nil, err
	}
	root, err := s.client.Pokemon.GetJSON(ctx, speciesID)
	if err != nil {
		return nil, err
	}

	concurrency := concurrencyOr(req.Concurrency)
	expanded, err := s.client.ExpandConcurrent(ctx, root,
		WithPaths(detailExpandPaths...),
		WithDepth(1),
		WithMaxRequests(detailExpandBudget),
		WithConcurrency(concurrency),
	)
	if err != nil {
		return nil, err
	}

	var p Pokemon
	if err := decodeNode(expanded, &p); err != nil {
		return nil, err
	}

	view := &PokedexDetailView{
		Name:          species.Name,
		OtherNames:    otherNames(species),
		NationalNo:    species.ID,
		RegionalNo:    RegionalNumber(species, pokedex),
		GenderRatio:   FormatGenderRatio(species.GenderRate),
		Types:         CollectTypes(&p),
		CaptureRate:   species.CaptureRate,
		BaseEggSteps:  EggSteps(deref(species.HatchCounter)),
		GrowthRate:    species.GrowthRate.Name,
		BaseHappiness: deref(species.BaseHappiness),
		EggGroups:     []string{},
		WildHeldItems: map[string][]string{},
		Gen1OnlyMoves: []MoveLearn{},
		SpriteURL:     PickSprite(p.Sprites, pokedex, req.SpritePreference),
	}

	view.HeightM = float64(p.Height) / 10
	view.WeightKg = float64(p.Weight) / 10
	view.HeightFtIn = FeetInches(view.HeightM)
	view.WeightLbs = KgToLbs(view.WeightKg)

	for _, g := range species.Genera {
		if g.Language.Name == "en" {
			view.Classification = g.Genus
			break
		}
	}

	view.EVYields = []EVYield{}
	for _, st := range p.Stats {
		if st.Effort > 0 {
			view.EVYields = append(view.EVYields, EVYield{Stat: st.Stat.Name, Value: st.Effort})
		}
	}

	view.DamageTaken = ComputeDamageTaken(view.Types, s.typeData(ctx, expanded))

	for _, item := range p.HeldItems {
		if item.Item.Name == "" {
			continue
		}
		for _, vd := range item.VersionDetails {
			if vd.Version.Name != "" {
				view.WildHeldItems[vd.Version.Name] = append(view.WildHeldItems[vd.Version.Name], item.Item.Name)
			}
		}
	}

	for _, eg := range species.EggGroups {
		if eg.Name != "" {
			view.EggGroups = append(view.EggGroups, eg.Name)
		}
	}

	view.EvolutionChain = s.evolutionChain(ctx, species)
	view.Locations = s.locations(ctx, speciesID, generation)

	filter := func(method string) []MoveLearn {
		var moves []MoveLearn
		if req.VersionGroup != "" {
			moves = FilterMovesByVersionGroup(p.Moves, req.VersionGroup, method)
		} else {
			moves = FilterMovesByGeneration(p.Moves, generation, method)
		}
		if moves == nil {
			moves = []MoveLearn{}
		}
		return moves
	}
	view.LevelUpMoves = filter("level-up")
	view.TMHMMoves = filter("machine")
	view.TutorMoves = filter("tutor")

	if err := s.fillMoveInfo(ctx, expanded, concurrency, view.LevelUpMoves, view.TMHMMoves, view.TutorMoves); err != nil {
		return nil, err
	}

	return view, nil
}

func otherNames(species *PokemonSpecies) []LocalizedName {
	out := []LocalizedName{}
	for _, n := range species.Names {
		if n.Language.Name != "" && n.Name != "" && n.Language.Name != "en" {
			out = append(out, LocalizedName{Language: n.Language.Name, Value: n.Name})
		}
	}
	return out
}

// typeData collects the /type payloads of the pokemon's types, from the
// expansion when present and from PokeAPI otherwise.
func (s *PokedexService) typeData(ctx context.Context, expanded gen.Node) map[string]*Type {
	out := make(map[string]*Type)
	for _, ref := range expand.AtPath(expanded, "types.type") {
		name, _ := asString(ref["name"])
		if name == "" {
			continue
		}

		t := &Type{}
		if payload, ok := expand.Expanded(ref); ok {
			if err := decodeNode(payload, t); err == nil {
				out[name] = t
				continue
			}
		}
		if err := s.client.getInto(ctx, buildPath("/type/{0}", name), t); err != nil {
			s.debug(err, "Type data unavailable", logrus.Fields{"type": name})
			t = &Type{Name: name}
		}
		out[name] = t
	}
	return out
}

// fillMoveInfo sets type, power, accuracy and PP on every listed move. Data
// comes from the expansion when present; other moves are fetched. A move
// that cannot be fetched keeps empty battle fields.
func (s *PokedexService) fillMoveInfo(ctx context.Context, expanded gen.Node, concurrency int, lists ...[]MoveLearn) error {
	known := make(map[string]*Move)
	for _, ref := range expand.AtPath(expanded, "moves.move") {
		name, _ := asString(ref["name"])
		payload, ok := expand.Expanded(ref)
		if name == "" || !ok {
			continue
		}
		m := &Move{}
		if err := decodeNode(payload, m); err == nil {
			known[name] = m
		}
	}

	var missing []string
	for _, list := range lists {
		for _, ml := range list {
			if _, ok := known[ml.Name]; !ok && !slices.Contains(missing, ml.Name) {
				missing = append(missing, ml.Name)
			}
		}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, name := range missing {
		g.Go(func() error {
			m := &Move{}
			if err := s.client.getInto(ctx, buildPath("/move/{0}", name), m); err != nil {
				s.debug(err, "Move data unavailable", logrus.Fields{"move": name})
				return nil
			}
			mu.Lock()
			known[name] = m
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, list := range lists {
		for i := range list {
			m, ok := known[list[i].Name]
			if !ok {
				continue
			}
			list[i].Type = m.Type.Name
			list[i].Power = m.Power
			list[i].Accuracy = m.Accuracy
			list[i].PP = m.PP
		}
	}
	return nil
}

func (s *PokedexService) evolutionChain(ctx context.Context, species *PokemonSpecies) []string {
	if species.EvolutionChain == nil || species.EvolutionChain.URL == "" {
		return []string{}
	}
	id := path.Base(strings.TrimRight(species.EvolutionChain.URL, "/"))

	var chain EvolutionChain
	if err := s.client.getInto(ctx, buildPath("/evolution-chain/{0}", id), &chain); err != nil {
		s.debug(err, "Evolution chain unavailable", logrus.Fields{"species": species.Name})
		return []string{}
	}
	out := FlattenEvolutionChain(&chain)
	if out == nil {
		out = []string{}
	}
	return out
}

func (s *PokedexService) locations(ctx context.Context, speciesID string, generation int) []LocationEntry {
	encounters, err := s.client.Pokemon.Encounters(ctx, speciesID)
	if err != nil {
		s.debug(err, "Encounters unavailable", logrus.Fields{"species": speciesID})
		return []LocationEntry{}
	}
	out := FilterLocationsByGeneration(encounters, generation)
	if out == nil {
		out = []LocationEntry{}
	}
	return out
}

func (s *PokedexService) debug(err error, msg string, fields logrus.Fields) {
	if s.client.config.Logger == nil {
		return
	}
	s.client.config.Logger.WithFields(fields).WithError(err).Debug(msg)
}

func concurrencyOr(n int) int {
	if n <= 0 {
		return defaultConcurrency
	}
	return n
}

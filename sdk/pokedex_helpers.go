package sdk

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// Stat names accepted by RankingsRequest.SortBy besides "total".
var rankingStats = []string{"hp", "attack", "defense", "special-attack", "special-defense", "speed"}

// attackingTypes are the attack types listed in a damage table.
var attackingTypes = []string{
	"normal", "fighting", "flying", "poison", "ground", "rock",
	"bug", "ghost", "steel", "fire", "water", "grass",
	"electric", "psychic", "ice", "dragon", "dark",
}

var regionPokedex = map[string]string{
	"kanto":  "kanto",
	"johto":  "original-johto",
	"hoenn":  "hoenn",
	"sinnoh": "original-sinnoh",
	"unova":  "original-unova",
	"kalos":  "kalos-central",
	"alola":  "original-alola",
	"galar":  "galar",
}

var pokedexGeneration = map[string]int{
	"kanto":           1,
	"original-johto":  2,
	"updated-johto":   2,
	"hoenn":           3,
	"original-sinnoh": 4,
	"extended-sinnoh": 4,
	"original-unova":  5,
	"updated-unova":   5,
	"kalos-central":   6,
	"kalos-coastal":   6,
	"kalos-mountain":  6,
	"original-alola":  7,
	"updated-alola":   7,
	"galar":           8,
}

var generationVersionGroups = map[int][]string{
	1: {"red-blue", "yellow"},
	2: {"gold-silver", "crystal"},
	3: {"ruby-sapphire", "emerald", "firered-leafgreen"},
	4: {"diamond-pearl", "platinum", "heartgold-soulsilver"},
	5: {"black-white", "black-2-white-2"},
	6: {"x-y", "omega-ruby-alpha-sapphire"},
	7: {"sun-moon", "ultra-sun-ultra-moon"},
	8: {"sword-shield", "brilliant-diamond-shining-pearl", "legends-arceus"},
}

// generationSprites maps a generation to its sprite key and games in
// preference order.
var generationSprites = map[int]struct {
	key   string
	games []string
}{
	1: {"generation-i", []string{"red-blue", "yellow"}},
	2: {"generation-ii", []string{"gold", "silver", "crystal"}},
	3: {"generation-iii", []string{"ruby-sapphire", "emerald", "firered-leafgreen"}},
	4: {"generation-iv", []string{"diamond-pearl", "platinum", "heartgold-soulsilver"}},
	5: {"generation-v", []string{"black-white", "black-2-white-2"}},
	6: {"generation-vi", []string{"x-y", "omega-ruby-alpha-sapphire"}},
	7: {"generation-vii", []string{"sun-moon", "ultra-sun-ultra-moon"}},
	8: {"generation-viii", []string{"sword-shield", "brilliant-diamond-shining-pearl", "legends-arceus"}},
}

// pokedexSprites lists, per pokedex, the sprite generation and games tried
// before the default sprite.
var pokedexSprites = map[string]struct {
	key   string
	games []string
}{
	"kanto":          {"generation-i", []string{"red-blue", "yellow"}},
	"original-johto": {"generation-ii", []string{"gold", "silver", "crystal"}},
	"updated-johto":  {"generation-ii", []string{"crystal", "gold", "silver"}},
	"hoenn":          {"generation-iii", []string{"ruby-sapphire", "emerald"}},
	"galar":          {"generation-viii", []string{"icons"}},
}

var versionGroupOfVersion = map[string]string{
	"red":               "red-blue",
	"blue":              "red-blue",
	"yellow":            "yellow",
	"gold":              "gold-silver",
	"silver":            "gold-silver",
	"crystal":           "crystal",
	"ruby":              "ruby-sapphire",
	"sapphire":          "ruby-sapphire",
	"emerald":           "emerald",
	"firered":           "firered-leafgreen",
	"leafgreen":         "firered-leafgreen",
	"diamond":           "diamond-pearl",
	"pearl":             "diamond-pearl",
	"platinum":          "platinum",
	"heartgold":         "heartgold-soulsilver",
	"soulsilver":        "heartgold-soulsilver",
	"black":             "black-white",
	"white":             "black-white",
	"black-2":           "black-2-white-2",
	"white-2":           "black-2-white-2",
	"x":                 "x-y",
	"y":                 "x-y",
	"omega-ruby":        "omega-ruby-alpha-sapphire",
	"alpha-sapphire":    "omega-ruby-alpha-sapphire",
	"sun":               "sun-moon",
	"moon":              "sun-moon",
	"ultra-sun":         "ultra-sun-ultra-moon",
	"ultra-moon":        "ultra-sun-ultra-moon",
	"sword":             "sword-shield",
	"shield":            "sword-shield",
	"brilliant-diamond": "brilliant-diamond-shining-pearl",
	"shining-pearl":     "brilliant-diamond-shining-pearl",
	"legends-arceus":    "legends-arceus",
}

// ValidSortBy reports whether s is an accepted rankings sort key.
func ValidSortBy(s string) bool {
	return s == "total" || slices.Contains(rankingStats, s)
}

// RegionPokedex returns the main pokedex of a region.
func RegionPokedex(region string) (string, bool) {
	p, ok := regionPokedex[strings.ToLower(region)]
	return p, ok
}

// GenerationForPokedex returns the generation a pokedex belongs to,
// defaulting to 1 for unknown pokedexes.
func GenerationForPokedex(pokedex string) int {
	if g, ok := pokedexGeneration[pokedex]; ok {
		return g
	}
	return 1
}

// VersionGroupsForGeneration returns the version groups released in a
// generation, or nil.
func VersionGroupsForGeneration(generation int) []string {
	return generationVersionGroups[generation]
}

// TotalBaseStat sums the base stats of p.
func TotalBaseStat(p *Pokemon) int {
	total := 0
	for _, s := range p.Stats {
		total += s.BaseStat
	}
	return total
}

// BaseStats maps stat names to base values.
func BaseStats(p *Pokemon) map[string]int {
	out := make(map[string]int, len(p.Stats))
	for _, s := range p.Stats {
		if s.Stat.Name != "" {
			out[s.Stat.Name] = s.BaseStat
		}
	}
	return out
}

// CollectTypes returns the type names of p in slot order.
func CollectTypes(p *Pokemon) []string {
	types := make([]string, 0, len(p.Types))
	for _, t := range p.Types {
		if t.Type.Name != "" {
			types = append(types, t.Type.Name)
		}
	}
	return types
}

// FormatGenderRatio renders a PokeAPI gender_rate (eighths female, -1 for
// genderless).
func FormatGenderRatio(genderRate int) string {
	if genderRate == -1 {
		return "Genderless"
	}
	female := float64(genderRate) * 12.5
	return fmt.Sprintf("M %.1f%% / F %.1f%%", 100-female, female)
}

// EggSteps converts a hatch counter into base egg steps.
func EggSteps(hatchCounter int) int {
	return 255 * (hatchCounter + 1)
}

// FeetInches renders a height in meters as feet and zero-padded inches,
// e.g. 2.0 becomes 6'07".
func FeetInches(meters float64) string {
	totalInches := meters * 39.3701
	feet := int(math.Floor(totalInches / 12))
	inches := int(math.RoundToEven(math.Mod(totalInches, 12)))
	if inches == 12 {
		feet++
		inches = 0
	}
	return fmt.Sprintf("%d'%02d\"", feet, inches)
}

// KgToLbs converts kilograms to pounds rounded to one decimal.
func KgToLbs(kg float64) float64 {
	return math.Round(kg*2.20462*10) / 10
}

// FlattenEvolutionChain lists the species of a chain depth first.
func FlattenEvolutionChain(chain *EvolutionChain) []string {
	if chain == nil {
		return nil
	}
	var out []string
	var walk func(link ChainLink)
	walk = func(link ChainLink) {
		if link.Species.Name != "" {
			out = append(out, link.Species.Name)
		}
		for _, next := range link.EvolvesTo {
			walk(next)
		}
	}
	walk(chain.Chain)
	return out
}

// ComputeDamageTaken returns the multiplier of every attacking type against
// a pokemon of the given defending types. typeData holds the /type payload
// of each defending type; missing types count as neutral.
func ComputeDamageTaken(defTypes []string, typeData map[string]*Type) []DamageTakenEntry {
	out := make([]DamageTakenEntry, 0, len(attackingTypes))
	for _, attacking := range attackingTypes {
		multiplier := 1.0
		for _, defending := range defTypes {
			t := typeData[defending]
			if t == nil {
				continue
			}
			rel := t.DamageRelations
			switch {
			case containsName(rel.DoubleDamageFrom, attacking):
				multiplier *= 2
			case containsName(rel.HalfDamageFrom, attacking):
				multiplier *= 0.5
			case containsName(rel.NoDamageFrom, attacking):
				multiplier *= 0
			}
		}
		out = append(out, DamageTakenEntry{
			Type:       attacking,
			Multiplier: math.Round(multiplier*100) / 100,
		})
	}
	return out
}

func containsName(refs []NamedAPIResource, name string) bool {
	return slices.ContainsFunc(refs, func(r NamedAPIResource) bool {
		return r.Name == name
	})
}

// ResolveNumber maps a regional entry number to a species name. Numbers not
// in the pokedex are returned as national numbers.
func ResolveNumber(entries []PokemonEntry, number int) string {
	for _, e := range entries {
		if e.EntryNumber == number && e.PokemonSpecies.Name != "" {
			return e.PokemonSpecies.Name
		}
	}
	return fmt.Sprint(number)
}

// RegionalNumber returns the species' entry number in pokedex, or nil.
func RegionalNumber(species *PokemonSpecies, pokedex string) *int {
	for _, n := range species.PokedexNumbers {
		if n.Pokedex.Name == pokedex {
			number := n.EntryNumber
			return &number
		}
	}
	return nil
}

// FilterMovesByGeneration returns the moves learned by method in any version
// group of the generation. Each move appears once, with its first matching
// version group.
func FilterMovesByGeneration(moves []PokemonMove, generation int, method string) []MoveLearn {
	groups := VersionGroupsForGeneration(generation)
	return filterMoves(moves, method, func(vg string) bool {
		return slices.Contains(groups, vg)
	})
}

// FilterMovesByVersionGroup returns the moves learned by method in one
// version group.
func FilterMovesByVersionGroup(moves []PokemonMove, versionGroup, method string) []MoveLearn {
	return filterMoves(moves, method, func(vg string) bool {
		return vg == versionGroup
	})
}

func filterMoves(moves []PokemonMove, method string, match func(string) bool) []MoveLearn {
	var out []MoveLearn
	for _, m := range moves {
		if m.Move.Name == "" {
			continue
		}
		for _, d := range m.VersionGroupDetails {
			if !match(d.VersionGroup.Name) || d.MoveLearnMethod.Name != method {
				continue
			}
			learn := MoveLearn{
				Name:         m.Move.Name,
				Method:       method,
				VersionGroup: d.VersionGroup.Name,
			}
			if method == "level-up" {
				level := d.LevelLearnedAt
				learn.Level = &level
			}
			out = append(out, learn)
			break
		}
	}
	return out
}

// FilterLocationsByGeneration keeps the encounters of versions released in
// the generation.
func FilterLocationsByGeneration(encounters []LocationAreaEncounter, generation int) []LocationEntry {
	groups := VersionGroupsForGeneration(generation)
	var out []LocationEntry
	for _, e := range encounters {
		if e.LocationArea.Name == "" {
			continue
		}
		for _, vd := range e.VersionDetails {
			vg, ok := versionGroupOfVersion[vd.Version.Name]
			if ok && slices.Contains(groups, vg) {
				out = append(out, LocationEntry{
					Version:      vd.Version.Name,
					LocationArea: e.LocationArea.Name,
				})
			}
		}
	}
	return out
}

// PickSpritesForGeneration returns the regular and shiny front sprites of a
// generation's games, falling back to the default sprites.
func PickSpritesForGeneration(sprites *Sprites, generation int) (regular, shiny string) {
	if sprites == nil {
		return "", ""
	}

	if gs, ok := generationSprites[generation]; ok {
		games := sprites.Versions[gs.key]
		for _, game := range gs.games {
			s, ok := games[game]
			if !ok {
				continue
			}
			if regular == "" {
				regular = deref(s.FrontDefault)
			}
			if shiny == "" {
				shiny = deref(s.FrontShiny)
			}
			if regular != "" && shiny != "" {
				break
			}
		}
	}

	if regular == "" {
		regular = deref(sprites.FrontDefault)
	}
	if shiny == "" {
		shiny = deref(sprites.FrontShiny)
	}
	return regular, shiny
}

// PickSprite returns the front sprite for a pokedex. An explicit game
// preference wins when any generation has it; otherwise the pokedex's games
// are tried before the default sprite.
func PickSprite(sprites *Sprites, pokedex, preference string) string {
	if sprites == nil {
		return ""
	}

	if preference != "" {
		for _, key := range slices.Sorted(maps.Keys(sprites.Versions)) {
			if s, ok := sprites.Versions[key][preference]; ok && deref(s.FrontDefault) != "" {
				return *s.FrontDefault
			}
		}
	}

	if ps, ok := pokedexSprites[pokedex]; ok {
		games := sprites.Versions[ps.key]
		for _, game := range ps.games {
			if s, ok := games[game]; ok && deref(s.FrontDefault) != "" {
				return *s.FrontDefault
			}
		}
	}

	return deref(sprites.FrontDefault)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

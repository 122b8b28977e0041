package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(name string) NamedAPIResource {
	return NamedAPIResource{Name: name}
}

func refs(names ...string) []NamedAPIResource {
	out := make([]NamedAPIResource, len(names))
	for i, n := range names {
		out[i] = ref(n)
	}
	return out
}

func strPtr(s string) *string { return &s }

func TestFormatGenderRatio(t *testing.T) {
	tests := []struct {
		rate int
		want string
	}{
		{-1, "Genderless"},
		{0, "M 100.0% / F 0.0%"},
		{1, "M 87.5% / F 12.5%"},
		{4, "M 50.0% / F 50.0%"},
		{8, "M 0.0% / F 100.0%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatGenderRatio(tt.rate), "rate %d", tt.rate)
	}
}

func TestFeetInches(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{0.7, `2'04"`},
		{1.7, `5'07"`},
		{2.0, `6'07"`},
		{0.3, `1'00"`},
		{0, `0'00"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FeetInches(tt.meters), "%.1fm", tt.meters)
	}
}

func TestUnitConversions(t *testing.T) {
	assert.Equal(t, 15.2, KgToLbs(6.9))
	assert.Equal(t, 199.5, KgToLbs(90.5))
	assert.Equal(t, 5355, EggSteps(20))
	assert.Equal(t, 255, EggSteps(0))
}

func TestPokedexLookups(t *testing.T) {
	p, ok := RegionPokedex("Johto")
	assert.True(t, ok)
	assert.Equal(t, "original-johto", p)

	_, ok = RegionPokedex("paldea")
	assert.False(t, ok)

	assert.Equal(t, 4, GenerationForPokedex("extended-sinnoh"))
	assert.Equal(t, 1, GenerationForPokedex("national"))
	assert.Equal(t, []string{"red-blue", "yellow"}, VersionGroupsForGeneration(1))
	assert.Nil(t, VersionGroupsForGeneration(42))

	assert.True(t, ValidSortBy("total"))
	assert.True(t, ValidSortBy("special-attack"))
	assert.False(t, ValidSortBy("luck"))
}

func TestStatHelpers(t *testing.T) {
	p := &Pokemon{
		Stats: []PokemonStat{
			{BaseStat: 35, Stat: ref("hp")},
			{BaseStat: 90, Stat: ref("speed")},
			{BaseStat: 5, Stat: ref("")},
		},
		Types: []PokemonType{{Slot: 1, Type: ref("electric")}, {Slot: 2, Type: ref("")}},
	}

	assert.Equal(t, 130, TotalBaseStat(p))
	assert.Equal(t, map[string]int{"hp": 35, "speed": 90}, BaseStats(p))
	assert.Equal(t, []string{"electric"}, CollectTypes(p))
}

func TestComputeDamageTaken(t *testing.T) {
	typeData := map[string]*Type{
		"fire": {Name: "fire", DamageRelations: DamageRelations{
			DoubleDamageFrom: refs("ground", "rock", "water"),
			HalfDamageFrom:   refs("bug", "steel", "fire", "grass", "ice"),
		}},
		"flying": {Name: "flying", DamageRelations: DamageRelations{
			DoubleDamageFrom: refs("rock", "electric", "ice"),
			HalfDamageFrom:   refs("fighting", "bug", "grass"),
			NoDamageFrom:     refs("ground"),
		}},
	}

	table := ComputeDamageTaken([]string{"fire", "flying"}, typeData)
	require.Len(t, table, 17)

	got := make(map[string]float64)
	for _, e := range table {
		got[e.Type] = e.Multiplier
	}
	assert.Equal(t, 0.0, got["ground"])
	assert.Equal(t, 4.0, got["rock"])
	assert.Equal(t, 2.0, got["water"])
	assert.Equal(t, 0.25, got["grass"])
	assert.Equal(t, 0.25, got["bug"])
	assert.Equal(t, 1.0, got["ice"])
	assert.Equal(t, 0.5, got["fighting"])
	assert.Equal(t, 1.0, got["normal"])
	assert.Equal(t, "normal", table[0].Type, "attack types keep their fixed order")
	assert.Equal(t, "dark", table[16].Type)

	neutral := ComputeDamageTaken([]string{"mystery"}, typeData)
	for _, e := range neutral {
		assert.Equal(t, 1.0, e.Multiplier)
	}
}

func TestFlattenEvolutionChain(t *testing.T) {
	assert.Nil(t, FlattenEvolutionChain(nil))

	eevee := &EvolutionChain{Chain: ChainLink{
		Species: ref("eevee"),
		EvolvesTo: []ChainLink{
			{Species: ref("vaporeon")},
			{Species: ref("jolteon")},
			{Species: ref("flareon")},
		},
	}}
	assert.Equal(t, []string{"eevee", "vaporeon", "jolteon", "flareon"}, FlattenEvolutionChain(eevee))

	oddish := &EvolutionChain{Chain: ChainLink{
		Species: ref("oddish"),
		EvolvesTo: []ChainLink{{
			Species: ref("gloom"),
			EvolvesTo: []ChainLink{
				{Species: ref("vileplume")},
				{Species: ref("bellossom")},
			},
		}},
	}}
	assert.Equal(t, []string{"oddish", "gloom", "vileplume", "bellossom"}, FlattenEvolutionChain(oddish))
}

func TestResolveNumber(t *testing.T) {
	entries := []PokemonEntry{
		{EntryNumber: 1, PokemonSpecies: ref("chikorita")},
		{EntryNumber: 2, PokemonSpecies: ref("")},
	}

	assert.Equal(t, "chikorita", ResolveNumber(entries, 1))
	assert.Equal(t, "2", ResolveNumber(entries, 2))
	assert.Equal(t, "152", ResolveNumber(entries, 152))
}

func TestRegionalNumber(t *testing.T) {
	species := &PokemonSpecies{PokedexNumbers: []PokedexNumber{
		{EntryNumber: 152, Pokedex: ref("national")},
		{EntryNumber: 1, Pokedex: ref("original-johto")},
	}}

	n := RegionalNumber(species, "original-johto")
	require.NotNil(t, n)
	assert.Equal(t, 1, *n)
	assert.Nil(t, RegionalNumber(species, "kanto"))
}

func TestFilterMoves(t *testing.T) {
	detail := func(group, method string, level int) VersionGroupDetail {
		return VersionGroupDetail{LevelLearnedAt: level, MoveLearnMethod: ref(method), VersionGroup: ref(group)}
	}
	moves := []PokemonMove{
		{Move: ref("tackle"), VersionGroupDetails: []VersionGroupDetail{
			detail("gold-silver", "level-up", 1),
			detail("red-blue", "level-up", 1),
			detail("yellow", "level-up", 3),
		}},
		{Move: ref("cut"), VersionGroupDetails: []VersionGroupDetail{detail("red-blue", "machine", 0)}},
		{Move: ref("headbutt"), VersionGroupDetails: []VersionGroupDetail{detail("crystal", "tutor", 0)}},
		{Move: ref(""), VersionGroupDetails: []VersionGroupDetail{detail("red-blue", "level-up", 5)}},
	}

	levelUp := FilterMovesByGeneration(moves, 1, "level-up")
	require.Len(t, levelUp, 1)
	assert.Equal(t, "tackle", levelUp[0].Name)
	assert.Equal(t, "red-blue", levelUp[0].VersionGroup, "first matching version group wins")
	require.NotNil(t, levelUp[0].Level)
	assert.Equal(t, 1, *levelUp[0].Level)

	machines := FilterMovesByGeneration(moves, 1, "machine")
	require.Len(t, machines, 1)
	assert.Nil(t, machines[0].Level)

	assert.Empty(t, FilterMovesByGeneration(moves, 1, "tutor"))
	assert.Len(t, FilterMovesByGeneration(moves, 2, "tutor"), 1)

	yellow := FilterMovesByVersionGroup(moves, "yellow", "level-up")
	require.Len(t, yellow, 1)
	assert.Equal(t, 3, *yellow[0].Level)
}

func TestFilterLocationsByGeneration(t *testing.T) {
	encounters := []LocationAreaEncounter{
		{LocationArea: ref("viridian-forest-area"), VersionDetails: []EncounterVersionDetails{
			{Version: ref("red")}, {Version: ref("yellow")}, {Version: ref("gold")},
		}},
		{LocationArea: ref("route-2-area"), VersionDetails: []EncounterVersionDetails{{Version: ref("crystal")}}},
		{LocationArea: ref(""), VersionDetails: []EncounterVersionDetails{{Version: ref("red")}}},
	}

	assert.Equal(t, []LocationEntry{
		{Version: "red", LocationArea: "viridian-forest-area"},
		{Version: "yellow", LocationArea: "viridian-forest-area"},
	}, FilterLocationsByGeneration(encounters, 1))

	assert.Equal(t, []LocationEntry{
		{Version: "gold", LocationArea: "viridian-forest-area"},
		{Version: "crystal", LocationArea: "route-2-area"},
	}, FilterLocationsByGeneration(encounters, 2))
}

func TestPickSprites(t *testing.T) {
	sprites := &Sprites{
		FrontDefault: strPtr("default.png"),
		FrontShiny:   strPtr("shiny.png"),
		Versions: map[string]map[string]GameSprites{
			"generation-i": {
				"red-blue": {FrontDefault: strPtr("rb.png")},
				"yellow":   {FrontDefault: strPtr("y.png")},
			},
			"generation-ii": {
				"gold":    {FrontDefault: nil, FrontShiny: strPtr("gold-shiny.png")},
				"crystal": {FrontDefault: strPtr("c.png"), FrontShiny: strPtr("c-shiny.png")},
			},
		},
	}

	regular, shiny := PickSpritesForGeneration(sprites, 1)
	assert.Equal(t, "rb.png", regular)
	assert.Equal(t, "shiny.png", shiny, "falls back to the default shiny")

	regular, shiny = PickSpritesForGeneration(sprites, 2)
	assert.Equal(t, "c.png", regular)
	assert.Equal(t, "gold-shiny.png", shiny)

	regular, _ = PickSpritesForGeneration(sprites, 7)
	assert.Equal(t, "default.png", regular)

	regular, shiny = PickSpritesForGeneration(nil, 1)
	assert.Empty(t, regular)
	assert.Empty(t, shiny)

	assert.Equal(t, "rb.png", PickSprite(sprites, "kanto", ""))
	assert.Equal(t, "y.png", PickSprite(sprites, "kanto", "yellow"))
	assert.Equal(t, "c.png", PickSprite(sprites, "kanto", "crystal"))
	assert.Equal(t, "c.png", PickSprite(sprites, "original-johto", ""))
	assert.Equal(t, "default.png", PickSprite(sprites, "hoenn", "emerald"))
	assert.Equal(t, "default.png", PickSprite(sprites, "national", ""))
	assert.Empty(t, PickSprite(nil, "kanto", ""))
}

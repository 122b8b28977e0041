package sdk

// NamedAPIResource is PokeAPI's {name, url} reference.
type NamedAPIResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// APIResource is a reference without a name, such as an evolution chain.
type APIResource struct {
	URL string `json:"url"`
}

// Name is a localized name.
type Name struct {
	Name     string           `json:"name"`
	Language NamedAPIResource `json:"language"`
}

// Pokemon is a /pokemon resource.
type Pokemon struct {
	ID                     int                `json:"id"`
	Name                   string             `json:"name"`
	BaseExperience         *int               `json:"base_experience"`
	Height                 int                `json:"height"`
	Weight                 int                `json:"weight"`
	IsDefault              bool               `json:"is_default"`
	Order                  int                `json:"order"`
	LocationAreaEncounters string             `json:"location_area_encounters"`
	Abilities              []PokemonAbility   `json:"abilities"`
	Cries                  *Cries             `json:"cries,omitempty"`
	Forms                  []NamedAPIResource `json:"forms"`
	GameIndices            []GameIndex        `json:"game_indices"`
	HeldItems              []HeldItem         `json:"held_items"`
	Moves                  []PokemonMove      `json:"moves"`
	PastTypes              []PastType         `json:"past_types"`
	Species                NamedAPIResource   `json:"species"`
	Sprites                *Sprites           `json:"sprites,omitempty"`
	Stats                  []PokemonStat      `json:"stats"`
	Types                  []PokemonType      `json:"types"`
}

// PokemonAbility is one ability slot.
type PokemonAbility struct {
	Ability  *NamedAPIResource `json:"ability"`
	IsHidden bool              `json:"is_hidden"`
	Slot     int               `json:"slot"`
}

// Cries holds cry audio URLs.
type Cries struct {
	Latest string `json:"latest"`
	Legacy string `json:"legacy"`
}

// GameIndex is the pokemon's index in one game.
type GameIndex struct {
	GameIndex int              `json:"game_index"`
	Version   NamedAPIResource `json:"version"`
}

// HeldItem is an item a wild pokemon may hold.
type HeldItem struct {
	Item           NamedAPIResource `json:"item"`
	VersionDetails []VersionDetail  `json:"version_details"`
}

// VersionDetail is the rarity of a held item in one version.
type VersionDetail struct {
	Rarity  int              `json:"rarity"`
	Version NamedAPIResource `json:"version"`
}

// PokemonMove is a move and the ways it is learned.
type PokemonMove struct {
	Move                NamedAPIResource     `json:"move"`
	VersionGroupDetails []VersionGroupDetail `json:"version_group_details"`
}

// VersionGroupDetail describes how a move is learned in one version group.
type VersionGroupDetail struct {
	LevelLearnedAt  int              `json:"level_learned_at"`
	MoveLearnMethod NamedAPIResource `json:"move_learn_method"`
	Order           *int             `json:"order"`
	VersionGroup    NamedAPIResource `json:"version_group"`
}

// PokemonType is one type slot.
type PokemonType struct {
	Slot int              `json:"slot"`
	Type NamedAPIResource `json:"type"`
}

// PastType lists the types a pokemon had in an earlier generation.
type PastType struct {
	Generation NamedAPIResource `json:"generation"`
	Types      []PokemonType    `json:"types"`
}

// Sprites holds sprite URLs. Versions is keyed by generation, then game.
type Sprites struct {
	BackDefault      *string                           `json:"back_default"`
	BackFemale       *string                           `json:"back_female"`
	BackShiny        *string                           `json:"back_shiny"`
	BackShinyFemale  *string                           `json:"back_shiny_female"`
	FrontDefault     *string                           `json:"front_default"`
	FrontFemale      *string                           `json:"front_female"`
	FrontShiny       *string                           `json:"front_shiny"`
	FrontShinyFemale *string                           `json:"front_shiny_female"`
	Other            map[string]GameSprites            `json:"other,omitempty"`
	Versions         map[string]map[string]GameSprites `json:"versions,omitempty"`
}

// GameSprites is the sprite set of one game.
type GameSprites struct {
	FrontDefault *string `json:"front_default"`
	FrontShiny   *string `json:"front_shiny"`
}

// PokemonStat is one base stat.
type PokemonStat struct {
	BaseStat int              `json:"base_stat"`
	Effort   int              `json:"effort"`
	Stat     NamedAPIResource `json:"stat"`
}

// Generation is a /generation resource.
type Generation struct {
	ID             int                `json:"id"`
	Name           string             `json:"name"`
	MainRegion     NamedAPIResource   `json:"main_region"`
	Abilities      []NamedAPIResource `json:"abilities"`
	Moves          []NamedAPIResource `json:"moves"`
	Names          []Name             `json:"names"`
	PokemonSpecies []NamedAPIResource `json:"pokemon_species"`
	Types          []NamedAPIResource `json:"types"`
	VersionGroups  []NamedAPIResource `json:"version_groups"`
}

// PokemonSpecies is a /pokemon-species resource, reduced to the fields the
// pokedex views read.
type PokemonSpecies struct {
	ID             int                `json:"id"`
	Name           string             `json:"name"`
	BaseHappiness  *int               `json:"base_happiness"`
	CaptureRate    int                `json:"capture_rate"`
	GenderRate     int                `json:"gender_rate"`
	HatchCounter   *int               `json:"hatch_counter"`
	GrowthRate     NamedAPIResource   `json:"growth_rate"`
	EggGroups      []NamedAPIResource `json:"egg_groups"`
	EvolutionChain *APIResource       `json:"evolution_chain"`
	Genera         []Genus            `json:"genera"`
	Names          []Name             `json:"names"`
	PokedexNumbers []PokedexNumber    `json:"pokedex_numbers"`
}

// Genus is a localized classification such as "Seed Pokémon".
type Genus struct {
	Genus    string           `json:"genus"`
	Language NamedAPIResource `json:"language"`
}

// PokedexNumber is a species' entry number in one pokedex.
type PokedexNumber struct {
	EntryNumber int              `json:"entry_number"`
	Pokedex     NamedAPIResource `json:"pokedex"`
}

// Pokedex is a /pokedex resource.
type Pokedex struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	IsMainSeries   bool           `json:"is_main_series"`
	PokemonEntries []PokemonEntry `json:"pokemon_entries"`
}

// PokemonEntry is one entry of a pokedex.
type PokemonEntry struct {
	EntryNumber    int              `json:"entry_number"`
	PokemonSpecies NamedAPIResource `json:"pokemon_species"`
}

// EvolutionChain is an /evolution-chain resource.
type EvolutionChain struct {
	ID    int       `json:"id"`
	Chain ChainLink `json:"chain"`
}

// ChainLink is one node of an evolution tree.
type ChainLink struct {
	Species   NamedAPIResource `json:"species"`
	EvolvesTo []ChainLink      `json:"evolves_to"`
}

// LocationAreaEncounter is one element of /pokemon/{id}/encounters.
type LocationAreaEncounter struct {
	LocationArea   NamedAPIResource          `json:"location_area"`
	VersionDetails []EncounterVersionDetails `json:"version_details"`
}

// EncounterVersionDetails is the encounter data of one version.
type EncounterVersionDetails struct {
	MaxChance int              `json:"max_chance"`
	Version   NamedAPIResource `json:"version"`
}

// Type is a /type resource, reduced to its damage relations.
type Type struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	DamageRelations DamageRelations `json:"damage_relations"`
}

// DamageRelations lists how a type interacts with attackers and defenders.
type DamageRelations struct {
	DoubleDamageFrom []NamedAPIResource `json:"double_damage_from"`
	HalfDamageFrom   []NamedAPIResource `json:"half_damage_from"`
	NoDamageFrom     []NamedAPIResource `json:"no_damage_from"`
	DoubleDamageTo   []NamedAPIResource `json:"double_damage_to"`
	HalfDamageTo     []NamedAPIResource `json:"half_damage_to"`
	NoDamageTo       []NamedAPIResource `json:"no_damage_to"`
}

// Move is a /move resource, reduced to the battle data shown in move lists.
type Move struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Accuracy    *int              `json:"accuracy"`
	Power       *int              `json:"power"`
	PP          *int              `json:"pp"`
	Priority    int               `json:"priority"`
	Type        NamedAPIResource  `json:"type"`
	DamageClass *NamedAPIResource `json:"damage_class"`
}

// Membership lists the pokemon of a /type or /ability resource.
type Membership struct {
	Pokemon []struct {
		Pokemon NamedAPIResource `json:"pokemon"`
	} `json:"pokemon"`
}

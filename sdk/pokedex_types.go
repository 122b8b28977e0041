package sdk

// PokedexRankRow is one row of a pokedex rankings table.
type PokedexRankRow struct {
	Rank          int            `json:"rank"`
	RegionalNo    *int           `json:"regional_no"`
	NationalNo    int            `json:"national_no"`
	Name          string         `json:"name"`
	Types         []string       `json:"types"`
	BaseStats     map[string]int `json:"base_stats"`
	TotalBaseStat int            `json:"total_base_stat"`
	SpriteURL     string         `json:"sprite_url,omitempty"`
}

// LocalizedName is a name in one language.
type LocalizedName struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// DamageTakenEntry is the multiplier applied to attacks of one type.
type DamageTakenEntry struct {
	Type       string  `json:"type"`
	Multiplier float64 `json:"multiplier"`
}

// EVYield is the effort value a defeated pokemon awards for one stat.
type EVYield struct {
	Stat  string `json:"stat"`
	Value int    `json:"value"`
}

// MoveLearn describes a move and how it is learned. Level is only set for
// level-up moves; the battle fields are nil when PokeAPI has no value.
type MoveLearn struct {
	Level        *int   `json:"level"`
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Power        *int   `json:"power"`
	Accuracy     *int   `json:"accuracy"`
	PP           *int   `json:"pp"`
	Method       string `json:"method"`
	VersionGroup string `json:"version_group"`
}

// LocationEntry is a location area where the pokemon appears in one version.
type LocationEntry struct {
	Version      string `json:"version"`
	LocationArea string `json:"location_area"`
}

// PokedexDetailView is the full entry page of one pokemon.
type PokedexDetailView struct {
	Name           string              `json:"name"`
	OtherNames     []LocalizedName     `json:"other_names"`
	NationalNo     int                 `json:"national_no"`
	RegionalNo     *int                `json:"regional_no"`
	GenderRatio    string              `json:"gender_ratio"`
	Types          []string            `json:"types"`
	Classification string              `json:"classification,omitempty"`
	HeightM        float64             `json:"height_m"`
	HeightFtIn     string              `json:"height_ft_in"`
	WeightKg       float64             `json:"weight_kg"`
	WeightLbs      float64             `json:"weight_lbs"`
	CaptureRate    int                 `json:"capture_rate"`
	BaseEggSteps   int                 `json:"base_egg_steps"`
	GrowthRate     string              `json:"growth_rate"`
	BaseHappiness  int                 `json:"base_happiness"`
	EVYields       []EVYield           `json:"ev_yields"`
	DamageTaken    []DamageTakenEntry  `json:"damage_taken"`
	WildHeldItems  map[string][]string `json:"wild_held_items"`
	EggGroups      []string            `json:"egg_groups"`
	EvolutionChain []string            `json:"evolution_chain"`
	Locations      []LocationEntry     `json:"locations"`
	LevelUpMoves   []MoveLearn         `json:"level_up_moves"`
	TMHMMoves      []MoveLearn         `json:"tm_hm_moves"`
	TutorMoves     []MoveLearn         `json:"tutor_moves"`
	Gen1OnlyMoves  []MoveLearn         `json:"gen1_only_moves"`
	SpriteURL      string              `json:"sprite_url,omitempty"`
}

package pokeapitest

import (
	"fmt"
	"strconv"
)

type document = map[string]interface{}

// learn is one way a fixture pokemon learns a move.
type learn struct {
	move   string
	method string
	group  string
	level  int
}

type encounter struct {
	area     string
	versions []string
}

type heldItem struct {
	item     string
	versions []string
}

type monster struct {
	id         int
	name       string
	types      []string
	abilities  []string
	stats      [6]int
	effort     [6]int
	height     int
	weight     int
	moves      []learn
	held       []heldItem
	encounters []encounter
	chain      int
	genderRate int
	capture    int
	hatch      int
	happiness  int
	genus      string
	growth     string
	eggGroups  []string
	japanese   string
}

var statNames = [6]string{"hp", "attack", "defense", "special-attack", "special-defense", "speed"}

// Monsters are the pokemon served by the fake API, in national order. Their
// kanto entry numbers equal their national numbers.
var monsters = []monster{
	{
		id: 1, name: "bulbasaur", types: []string{"grass", "poison"}, abilities: []string{"overgrow"},
		stats: [6]int{45, 49, 49, 65, 65, 45}, effort: [6]int{0, 0, 0, 1, 0, 0},
		height: 7, weight: 69,
		moves: []learn{
			{"tackle", "level-up", "red-blue", 1},
			{"vine-whip", "level-up", "red-blue", 13},
			{"swords-dance", "machine", "red-blue", 0},
			{"seed-bomb", "machine", "x-y", 0},
			{"body-slam", "tutor", "yellow", 0},
		},
		chain: 1, genderRate: 1, capture: 45, hatch: 20, happiness: 50,
		genus: "Seed Pokémon", growth: "medium-slow", eggGroups: []string{"monster", "plant"},
		japanese: "フシギダネ",
	},
	{
		id: 2, name: "ivysaur", types: []string{"grass", "poison"}, abilities: []string{"overgrow"},
		stats: [6]int{60, 62, 63, 80, 80, 60}, effort: [6]int{0, 0, 0, 1, 1, 0},
		height: 10, weight: 130,
		moves: []learn{
			{"tackle", "level-up", "red-blue", 1},
			{"vine-whip", "level-up", "red-blue", 1},
		},
		chain: 1, genderRate: 1, capture: 45, hatch: 20, happiness: 50,
		genus: "Seed Pokémon", growth: "medium-slow", eggGroups: []string{"monster", "plant"},
	},
	{
		id: 4, name: "charmander", types: []string{"fire"}, abilities: []string{"blaze"},
		stats: [6]int{39, 52, 43, 60, 50, 65}, effort: [6]int{0, 0, 0, 0, 0, 1},
		height: 6, weight: 85,
		moves: []learn{
			{"scratch", "level-up", "red-blue", 1},
			{"ember", "level-up", "red-blue", 9},
		},
		chain: 2, genderRate: 1, capture: 45, hatch: 20, happiness: 50,
		genus: "Lizard Pokémon", growth: "medium-slow", eggGroups: []string{"monster", "dragon"},
	},
	{
		id: 6, name: "charizard", types: []string{"fire", "flying"}, abilities: []string{"blaze"},
		stats: [6]int{78, 84, 78, 109, 85, 100}, effort: [6]int{0, 0, 0, 3, 0, 0},
		height: 17, weight: 905,
		moves: []learn{
			{"scratch", "level-up", "red-blue", 1},
			{"ember", "level-up", "red-blue", 1},
			{"swords-dance", "machine", "red-blue", 0},
		},
		chain: 2, genderRate: 1, capture: 45, hatch: 20, happiness: 50,
		genus: "Flame Pokémon", growth: "medium-slow", eggGroups: []string{"monster", "dragon"},
	},
	{
		id: 25, name: "pikachu", types: []string{"electric"}, abilities: []string{"static"},
		stats: [6]int{35, 55, 40, 50, 50, 90}, effort: [6]int{0, 0, 0, 0, 0, 2},
		height: 4, weight: 60,
		moves: []learn{
			{"thunder-shock", "level-up", "red-blue", 1},
			{"quick-attack", "level-up", "red-blue", 16},
		},
		held: []heldItem{{"light-ball", []string{"gold", "silver"}}, {"oran-berry", []string{"x"}}},
		encounters: []encounter{
			{"viridian-forest-area", []string{"red", "blue", "yellow"}},
			{"route-2-area", []string{"gold"}},
		},
		chain: 10, genderRate: 4, capture: 190, hatch: 10, happiness: 50,
		genus: "Mouse Pokémon", growth: "medium", eggGroups: []string{"ground", "fairy"},
		japanese: "ピカチュウ",
	},
}

// Names of the fixture pokemon in national order.
func Names() []string {
	out := make([]string, len(monsters))
	for i, m := range monsters {
		out[i] = m.name
	}
	return out
}

type moveData struct {
	name     string
	typ      string
	power    int
	accuracy int
	pp       int
}

var moves = []moveData{
	{"tackle", "normal", 40, 100, 35},
	{"vine-whip", "grass", 45, 100, 25},
	{"swords-dance", "normal", 0, 0, 20},
	{"seed-bomb", "grass", 80, 100, 15},
	{"body-slam", "normal", 85, 100, 15},
	{"scratch", "normal", 40, 100, 35},
	{"ember", "fire", 40, 100, 25},
	{"thunder-shock", "electric", 40, 100, 30},
	{"quick-attack", "normal", 40, 100, 30},
}

// Fixture moves deal physical damage unless they have no power.
func (m moveData) damageClass() string {
	if m.power == 0 {
		return "status"
	}
	return "physical"
}

type typeData struct {
	name   string
	double []string
	half   []string
	none   []string
}

var types = []typeData{
	{"grass", []string{"flying", "poison", "bug", "fire", "ice"}, []string{"ground", "water", "grass", "electric"}, nil},
	{"poison", []string{"ground", "psychic"}, []string{"fighting", "poison", "bug", "grass", "fairy"}, nil},
	{"fire", []string{"ground", "rock", "water"}, []string{"bug", "steel", "fire", "grass", "ice", "fairy"}, nil},
	{"flying", []string{"rock", "electric", "ice"}, []string{"fighting", "bug", "grass"}, []string{"ground"}},
	{"electric", []string{"ground"}, []string{"flying", "steel", "electric"}, nil},
	{"normal", []string{"fighting"}, nil, []string{"ghost"}},
}

type generationData struct {
	id     int
	name   string
	region string
	groups []string
}

var generations = []generationData{
	{1, "generation-i", "kanto", []string{"red-blue", "yellow"}},
	{2, "generation-ii", "johto", []string{"gold-silver", "crystal"}},
	{3, "generation-iii", "hoenn", []string{"ruby-sapphire", "emerald", "firered-leafgreen"}},
}

// chains maps an evolution chain id to its species in order.
var chains = map[int][]string{
	1:  {"bulbasaur", "ivysaur", "venusaur"},
	2:  {"charmander", "charmeleon", "charizard"},
	10: {"pichu", "pikachu", "raichu"},
}

// fixtures builds every static document served under base.
func fixtures(base string) map[string]interface{} {
	ref := func(endpoint, name string) document {
		return document{"name": name, "url": fmt.Sprintf("%s/%s/%s/", base, endpoint, name)}
	}
	refs := func(endpoint string, names []string) []interface{} {
		out := make([]interface{}, 0, len(names))
		for _, n := range names {
			out = append(out, ref(endpoint, n))
		}
		return out
	}

	docs := make(map[string]interface{})
	put := func(doc interface{}, paths ...string) {
		for _, p := range paths {
			docs[p] = doc
		}
	}

	memberships := map[string][]string{}
	for _, m := range monsters {
		p := pokemonDoc(base, m, ref, refs)
		put(p, "/pokemon/"+m.name, "/pokemon/"+strconv.Itoa(m.id))

		s := speciesDoc(base, m, ref, refs)
		put(s, "/pokemon-species/"+m.name, "/pokemon-species/"+strconv.Itoa(m.id))

		put(encountersDoc(m, ref), "/pokemon/"+m.name+"/encounters", "/pokemon/"+strconv.Itoa(m.id)+"/encounters")

		put(document{"id": m.id, "name": m.name, "pokemon": ref("pokemon", m.name)}, "/pokemon-form/"+m.name)

		for _, t := range m.types {
			memberships["type/"+t] = append(memberships["type/"+t], m.name)
		}
		for _, a := range m.abilities {
			memberships["ability/"+a] = append(memberships["ability/"+a], m.name)
		}
	}

	for i, t := range types {
		members := make([]interface{}, 0)
		for slot, n := range memberships["type/"+t.name] {
			members = append(members, document{"slot": slot + 1, "pokemon": ref("pokemon", n)})
		}
		put(document{
			"id":   i + 1,
			"name": t.name,
			"damage_relations": document{
				"double_damage_from": refs("type", t.double),
				"half_damage_from":   refs("type", t.half),
				"no_damage_from":     refs("type", t.none),
				"double_damage_to":   []interface{}{},
				"half_damage_to":     []interface{}{},
				"no_damage_to":       []interface{}{},
			},
			"pokemon": members,
		}, "/type/"+t.name)
	}

	for i, a := range []string{"overgrow", "blaze", "static"} {
		members := make([]interface{}, 0)
		for _, n := range memberships["ability/"+a] {
			members = append(members, document{"is_hidden": false, "slot": 1, "pokemon": ref("pokemon", n)})
		}
		put(document{"id": i + 1, "name": a, "pokemon": members}, "/ability/"+a)
	}

	for i, class := range []string{"status", "physical", "special"} {
		members := make([]interface{}, 0)
		for _, mv := range moves {
			if mv.damageClass() == class {
				members = append(members, ref("move", mv.name))
			}
		}
		put(document{"id": i + 1, "name": class, "moves": members}, "/move-damage-class/"+class, "/move-damage-class/"+strconv.Itoa(i+1))
	}

	for i, mv := range moves {
		doc := document{
			"id":           i + 1,
			"name":         mv.name,
			"priority":     0,
			"type":         ref("type", mv.typ),
			"damage_class": ref("move-damage-class", mv.damageClass()),
			"power":        nilIfZero(mv.power),
			"accuracy":     nilIfZero(mv.accuracy),
			"pp":           mv.pp,
		}
		put(doc, "/move/"+mv.name)
	}

	for _, g := range generations {
		doc := document{
			"id":             g.id,
			"name":           g.name,
			"main_region":    ref("region", g.region),
			"version_groups": refs("version-group", g.groups),
			"names":          []interface{}{},
		}
		put(doc, "/generation/"+g.name, "/generation/"+strconv.Itoa(g.id))
	}

	entries := make([]interface{}, 0, len(monsters))
	for _, m := range monsters {
		entries = append(entries, document{"entry_number": m.id, "pokemon_species": ref("pokemon-species", m.name)})
	}
	put(document{"id": 2, "name": "kanto", "is_main_series": true, "pokemon_entries": entries}, "/pokedex/kanto", "/pokedex/2")

	for id, species := range chains {
		put(document{"id": id, "chain": chainLink(species, ref)}, "/evolution-chain/"+strconv.Itoa(id))
	}

	return docs
}

func pokemonDoc(base string, m monster, ref func(string, string) document, refs func(string, []string) []interface{}) document {
	types := make([]interface{}, 0, len(m.types))
	for i, t := range m.types {
		types = append(types, document{"slot": i + 1, "type": ref("type", t)})
	}
	abilities := make([]interface{}, 0, len(m.abilities))
	for i, a := range m.abilities {
		abilities = append(abilities, document{"ability": ref("ability", a), "is_hidden": false, "slot": i + 1})
	}
	stats := make([]interface{}, 0, 6)
	for i, name := range statNames {
		stats = append(stats, document{"base_stat": m.stats[i], "effort": m.effort[i], "stat": ref("stat", name)})
	}
	learned := make([]interface{}, 0, len(m.moves))
	for _, l := range m.moves {
		learned = append(learned, document{
			"move": ref("move", l.move),
			"version_group_details": []interface{}{document{
				"level_learned_at":  l.level,
				"move_learn_method": ref("move-learn-method", l.method),
				"version_group":     ref("version-group", l.group),
			}},
		})
	}
	held := make([]interface{}, 0, len(m.held))
	for _, h := range m.held {
		details := make([]interface{}, 0, len(h.versions))
		for _, v := range h.versions {
			details = append(details, document{"rarity": 5, "version": ref("version", v)})
		}
		held = append(held, document{"item": ref("item", h.item), "version_details": details})
	}

	sprite := func(variant string) string {
		return fmt.Sprintf("https://sprites.example/%s/%d.png", variant, m.id)
	}
	return document{
		"id":                       m.id,
		"name":                     m.name,
		"base_experience":          64,
		"height":                   m.height,
		"weight":                   m.weight,
		"is_default":               true,
		"order":                    m.id,
		"location_area_encounters": fmt.Sprintf("%s/pokemon/%d/encounters", base, m.id),
		"abilities":                abilities,
		"forms":                    refs("pokemon-form", []string{m.name}),
		"game_indices":             []interface{}{},
		"held_items":               held,
		"moves":                    learned,
		"past_types":               []interface{}{},
		"species":                  ref("pokemon-species", m.name),
		"stats":                    stats,
		"types":                    types,
		"sprites": document{
			"front_default": sprite("default"),
			"front_shiny":   sprite("shiny"),
			"versions": document{
				"generation-i": document{
					"red-blue": document{"front_default": sprite("red-blue"), "front_shiny": nil},
					"yellow":   document{"front_default": sprite("yellow"), "front_shiny": nil},
				},
				"generation-ii": document{
					"crystal": document{"front_default": sprite("crystal"), "front_shiny": sprite("crystal-shiny")},
				},
			},
		},
	}
}

func speciesDoc(base string, m monster, ref func(string, string) document, refs func(string, []string) []interface{}) document {
	names := []interface{}{
		document{"name": capitalize(m.name), "language": ref("language", "en")},
		document{"name": capitalize(m.name), "language": ref("language", "fr")},
	}
	if m.japanese != "" {
		names = append(names, document{"name": m.japanese, "language": ref("language", "ja")})
	}
	return document{
		"id":             m.id,
		"name":           m.name,
		"base_happiness": m.happiness,
		"capture_rate":   m.capture,
		"gender_rate":    m.genderRate,
		"hatch_counter":  m.hatch,
		"growth_rate":    ref("growth-rate", m.growth),
		"egg_groups":     refs("egg-group", m.eggGroups),
		"evolution_chain": document{
			"url": fmt.Sprintf("%s/evolution-chain/%d/", base, m.chain),
		},
		"genera": []interface{}{
			document{"genus": m.genus, "language": ref("language", "en")},
		},
		"names": names,
		"pokedex_numbers": []interface{}{
			document{"entry_number": m.id, "pokedex": ref("pokedex", "national")},
			document{"entry_number": m.id, "pokedex": ref("pokedex", "kanto")},
		},
	}
}

func encountersDoc(m monster, ref func(string, string) document) []interface{} {
	out := make([]interface{}, 0, len(m.encounters))
	for _, e := range m.encounters {
		details := make([]interface{}, 0, len(e.versions))
		for _, v := range e.versions {
			details = append(details, document{"max_chance": 5, "version": ref("version", v)})
		}
		out = append(out, document{"location_area": ref("location-area", e.area), "version_details": details})
	}
	return out
}

func chainLink(species []string, ref func(string, string) document) document {
	link := document{"species": ref("pokemon-species", species[0]), "evolves_to": []interface{}{}}
	if len(species) > 1 {
		link["evolves_to"] = []interface{}{chainLink(species[1:], ref)}
	}
	return link
}

func nilIfZero(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

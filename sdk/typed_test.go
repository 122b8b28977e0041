package sdk

import (
	"context"
	"testing"

	"github.com/birbparty/pokenest/internal/pokeapitest"
	"github.com/ohler55/ojg/gen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testForm struct {
	ID      int              `json:"id"`
	Name    string           `json:"name"`
	Pokemon NamedAPIResource `json:"pokemon"`
}

func TestResource_Get(t *testing.T) {
	srv := pokeapitest.New(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	forms := NewResource[testForm](client, "/pokemon-form/")
	assert.Equal(t, "pokemon-form", forms.Endpoint())

	form, err := forms.Get(ctx, "pikachu")
	require.NoError(t, err)
	assert.Equal(t, 25, form.ID)
	assert.Equal(t, "pikachu", form.Pokemon.Name)

	_, err = forms.Get(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, srv.Hits("/pokemon-form"))

	_, err = forms.Get(ctx, "missingno")
	assert.True(t, IsNotFound(err))
}

func TestResource_GetByIDMatchesName(t *testing.T) {
	srv := pokeapitest.New(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	byName, err := client.Pokemon.Get(ctx, "charizard")
	require.NoError(t, err)
	byID, err := NewResource[Pokemon](client, "pokemon").GetByID(ctx, 6)
	require.NoError(t, err)

	assert.Equal(t, byName.Name, byID.Name)
	assert.Equal(t, byName.Stats, byID.Stats)
	assert.Equal(t, []string{"fire", "flying"}, CollectTypes(byID))
	assert.Equal(t, 534, TotalBaseStat(byID))
}

func TestResource_GetJSON(t *testing.T) {
	srv := pokeapitest.New(t)
	client := newTestClient(t, srv)

	node, err := client.Generation.GetJSON(context.Background(), "generation-ii")
	require.NoError(t, err)

	obj := node.(gen.Object)
	assert.Equal(t, gen.Int(2), obj["id"])
	region := obj["main_region"].(gen.Object)
	assert.Equal(t, gen.String("johto"), region["name"])
}

func TestResource_EscapesNames(t *testing.T) {
	srv := pokeapitest.New(t)
	client := newTestClient(t, srv)

	_, err := client.Pokemon.Get(context.Background(), "mr mime")
	assert.True(t, IsNotFound(err))

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "/pokemon/mr mime", requests[0].Path)
}

func TestPokemonService(t *testing.T) {
	srv := pokeapitest.New(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	species, err := client.Pokemon.Species(ctx, "bulbasaur")
	require.NoError(t, err)
	assert.Equal(t, 1, species.ID)
	require.NotNil(t, species.HatchCounter)
	assert.Equal(t, 20, *species.HatchCounter)
	require.NotNil(t, species.EvolutionChain)
	assert.Contains(t, species.EvolutionChain.URL, "/evolution-chain/1/")

	encounters, err := client.Pokemon.Encounters(ctx, "pikachu")
	require.NoError(t, err)
	require.Len(t, encounters, 2)
	assert.Equal(t, "viridian-forest-area", encounters[0].LocationArea.Name)

	none, err := client.Pokemon.Encounters(ctx, "bulbasaur")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = client.Pokemon.Encounters(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGenerationService(t *testing.T) {
	srv := pokeapitest.New(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	g, err := client.Generation.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "generation-i", g.Name)
	assert.Equal(t, "kanto", g.MainRegion.Name)

	page, err := client.Generation.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	assert.False(t, page.HasNext())
}

func TestDecodeNode(t *testing.T) {
	var m Move
	err := decodeNode(gen.Object{"name": gen.String("tackle"), "power": gen.Int(40), "accuracy": nil}, &m)
	require.NoError(t, err)
	assert.Equal(t, "tackle", m.Name)
	require.NotNil(t, m.Power)
	assert.Equal(t, 40, *m.Power)
	assert.Nil(t, m.Accuracy)

	assert.ErrorIs(t, decodeNode(nil, &m), ErrInvalidResponse)
	assert.ErrorIs(t, decodeNode(gen.String("x"), &m), ErrInvalidResponse)
}

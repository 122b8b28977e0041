package cache

import (
	"strings"
	"testing"
)

func TestKeyBuilder_ResourceKey(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		endpoint  string
		id        string
		want      string
	}{
		{"namespaced", "pokenest", "pokemon", "pikachu", "pokenest:res:pokemon:pikachu"},
		{"no namespace", "", "pokemon", "25", "res:pokemon:25"},
		{"normalizes case and slashes", "pokenest", "/Pokemon/", " Pikachu ", "pokenest:res:pokemon:pikachu"},
		{"escapes separator", "pokenest", "pokemon", "a:b", "pokenest:res:pokemon:a_b"},
		{"trims namespace", "  pokenest ", "generation", "generation-i", "pokenest:res:generation:generation-i"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := NewKeyBuilder(tt.namespace)
			if got := kb.ResourceKey(tt.endpoint, tt.id); got != tt.want {
				t.Errorf("ResourceKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyBuilder_ExpandedKey(t *testing.T) {
	kb := NewKeyBuilder("pokenest")

	a := kb.ExpandedKey("pokemon", "pikachu", []string{"types.type", "abilities.ability"}, 1)
	b := kb.ExpandedKey("pokemon", "pikachu", []string{"abilities.ability", "types.type"}, 1)
	if a != b {
		t.Errorf("path order changed the key: %q != %q", a, b)
	}

	if !strings.HasPrefix(a, "pokenest:res:pokemon:pikachu:x:") {
		t.Errorf("ExpandedKey() = %q, want it below the resource key", a)
	}

	if c := kb.ExpandedKey("pokemon", "pikachu", []string{"types.type", "abilities.ability"}, 2); c == a {
		t.Error("depth must be part of the key")
	}
	if d := kb.ExpandedKey("pokemon", "pikachu", []string{"types.type"}, 1); d == a {
		t.Error("paths must be part of the key")
	}
	if e := kb.ExpandedKey("pokemon", "pikachu", nil, 1); e == a {
		t.Error("auto-discovery must not collide with explicit paths")
	}
}

func TestKeyBuilder_Patterns(t *testing.T) {
	kb := NewKeyBuilder("pokenest")

	if got, want := kb.ExpandedPattern("pokemon", "pikachu"), "pokenest:res:pokemon:pikachu:x:*"; got != want {
		t.Errorf("ExpandedPattern() = %q, want %q", got, want)
	}
	if got, want := kb.EndpointPattern("Pokemon"), "pokenest:res:pokemon:*"; got != want {
		t.Errorf("EndpointPattern() = %q, want %q", got, want)
	}
}

func TestKeyBuilder_ParseResourceKey(t *testing.T) {
	kb := NewKeyBuilder("pokenest")

	tests := []struct {
		key          string
		wantEndpoint string
		wantID       string
		wantOK       bool
	}{
		{"pokenest:res:pokemon:pikachu", "pokemon", "pikachu", true},
		{kb.ExpandedKey("pokemon", "pikachu", []string{"types.type"}, 1), "pokemon", "pikachu", true},
		{"pokenest:res:pokemon", "", "", false},
		{"other:res:pokemon:pikachu", "", "", false},
		{"pokenest:meta:pokemon:pikachu", "", "", false},
	}

	for _, tt := range tests {
		endpoint, id, ok := kb.ParseResourceKey(tt.key)
		if endpoint != tt.wantEndpoint || id != tt.wantID || ok != tt.wantOK {
			t.Errorf("ParseResourceKey(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.key, endpoint, id, ok, tt.wantEndpoint, tt.wantID, tt.wantOK)
		}
	}
}

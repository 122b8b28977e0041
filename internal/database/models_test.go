package database

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateResource(t *testing.T) {
	tests := []struct {
		name    string
		res     Resource
		wantErr error
	}{
		{
			name: "object",
			res:  Resource{Endpoint: "pokemon", ResourceID: "pikachu", Body: json.RawMessage(`{"id": 25}`)},
		},
		{
			name: "array with leading whitespace",
			res:  Resource{Endpoint: "pokemon", ResourceID: "pikachu", Body: json.RawMessage("\n  [1, 2]")},
		},
		{
			name:    "scalar string",
			res:     Resource{Endpoint: "pokemon", ResourceID: "pikachu", Body: json.RawMessage(`"hello world"`)},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "scalar number",
			res:     Resource{Endpoint: "pokemon", ResourceID: "pikachu", Body: json.RawMessage(`42`)},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "null",
			res:     Resource{Endpoint: "pokemon", ResourceID: "pikachu", Body: json.RawMessage(`null`)},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "hex token",
			res:     Resource{Endpoint: "pokemon", ResourceID: "pikachu", Body: json.RawMessage("9821f3fe")},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "malformed",
			res:     Resource{Endpoint: "pokemon", ResourceID: "pikachu", Body: json.RawMessage(`{"id": value}`)},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty body",
			res:     Resource{Endpoint: "pokemon", ResourceID: "pikachu"},
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "missing endpoint",
			res:     Resource{ResourceID: "pikachu", Body: json.RawMessage(`{}`)},
			wantErr: ErrInvalidRef,
		},
		{
			name:    "missing id",
			res:     Resource{Endpoint: "pokemon", Body: json.RawMessage(`{}`)},
			wantErr: ErrInvalidRef,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResource(&tt.res)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validateResource() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResourceAge(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := Resource{UpdatedAt: now.Add(-36 * time.Hour)}
	if got := r.Age(now); got != 36*time.Hour {
		t.Errorf("Age() = %v, want 36h", got)
	}
}

func TestSourceOrDefault(t *testing.T) {
	if got := sourceOrDefault("  "); got != SourceUpstream {
		t.Errorf("sourceOrDefault(blank) = %q", got)
	}
	if got := sourceOrDefault(SourcePrefetch); got != SourcePrefetch {
		t.Errorf("sourceOrDefault(prefetch) = %q", got)
	}
}

func TestSchema(t *testing.T) {
	for _, table := range []string{"resources", "dead_letters"} {
		if !strings.Contains(Schema(), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema does not create %s", table)
		}
	}
}

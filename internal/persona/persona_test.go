package persona

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	dir := Builtin()
	assert.Equal(t, 20, dir.Len())

	p, ok := dir.ByID("usr_001")
	require.True(t, ok)
	assert.Equal(t, "Luna Darksworth", p.Name)
	assert.NotEmpty(t, p.Email)
	assert.Equal(t, defaultPassword, p.Password)

	// Every persona carries a usable identity.
	for _, u := range dir.All() {
		assert.NotEmpty(t, u.ID)
		assert.NotEmpty(t, u.Name)
		assert.Contains(t, u.Email, "@")
		assert.NotEmpty(t, u.Password)
	}
}

func TestNewDirectory(t *testing.T) {
	tests := []struct {
		name     string
		personas []Persona
		wantErr  error
	}{
		{
			name:    "empty",
			wantErr: ErrEmptyDirectory,
		},
		{
			name:     "missing email",
			personas: []Persona{{ID: "u1", Name: "Test"}},
			wantErr:  ErrInvalidPersona,
		},
		{
			name:     "missing id",
			personas: []Persona{{Name: "Test", Email: "t@example.com"}},
			wantErr:  ErrInvalidPersona,
		},
		{
			name:     "valid",
			personas: []Persona{{ID: "u1", Name: "Test", Email: "t@example.com"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, err := NewDirectory(tt.personas)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.personas), dir.Len())
		})
	}
}

func TestNewDirectory_FillsDefaultPassword(t *testing.T) {
	dir, err := NewDirectory([]Persona{{ID: "u1", Name: "Test", Email: "t@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, defaultPassword, dir.All()[0].Password)
}

func TestRandom_Deterministic(t *testing.T) {
	dir := Builtin()

	a := rand.New(rand.NewSource(7))
	b := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		assert.Equal(t, dir.Random(a).ID, dir.Random(b).ID)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "personas.yaml")
	roster := `
personas:
  - id: usr_101
    name: Test Person
    email: test@example.com
  - id: usr_102
    name: Other Person
    email: other@example.com
    password: s3cret
`
	require.NoError(t, os.WriteFile(path, []byte(roster), 0o644))

	dir, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Len())

	p, ok := dir.ByID("usr_101")
	require.True(t, ok)
	assert.Equal(t, defaultPassword, p.Password)

	p, ok = dir.ByID("usr_102")
	require.True(t, ok)
	assert.Equal(t, "s3cret", p.Password)
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/personas.yaml")
	assert.ErrorIs(t, err, ErrRosterNotFound)
}

func TestSynthesize(t *testing.T) {
	personas := Synthesize(5, 20, 42)
	require.Len(t, personas, 5)

	assert.Equal(t, "usr_021", personas[0].ID)
	assert.Equal(t, "usr_025", personas[4].ID)
	for _, p := range personas {
		assert.NotEmpty(t, p.Name)
		assert.Contains(t, p.Email, "@")
		assert.NotEmpty(t, p.Password)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	assert.Equal(t, Synthesize(10, 0, 99), Synthesize(10, 0, 99))
}

func TestWithSynthesized(t *testing.T) {
	dir := Builtin()
	expanded, err := dir.WithSynthesized(5, 42)
	require.NoError(t, err)

	assert.Equal(t, 25, expanded.Len())
	// The original directory is untouched.
	assert.Equal(t, 20, dir.Len())

	// Synthesized IDs continue the numbering.
	_, ok := expanded.ByID("usr_021")
	assert.True(t, ok)
}

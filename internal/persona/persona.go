// Package persona provides the synthetic user directory for the traffic
// simulator. Personas are immutable and shared across sessions; each session
// picks one uniformly at random.
package persona

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Errors returned by the persona package.
var (
	// ErrEmptyDirectory is returned when a directory holds no personas.
	ErrEmptyDirectory = errors.New("persona: directory is empty")
	// ErrInvalidPersona is returned when a persona record is invalid.
	ErrInvalidPersona = errors.New("persona: invalid persona")
	// ErrRosterNotFound is returned when a roster file is not found.
	ErrRosterNotFound = errors.New("persona: roster file not found")
)

// defaultPassword is the shared password-equivalent for demo accounts.
const defaultPassword = "demo123"

// Persona is one synthetic user identity. Read-only once constructed.
type Persona struct {
	// ID is the stable identifier (e.g., "usr_001").
	ID string `yaml:"id" json:"id"`

	// Name is the display name.
	Name string `yaml:"name" json:"name"`

	// Email is the login email.
	Email string `yaml:"email" json:"email"`

	// Password is the password-equivalent used for manual login.
	Password string `yaml:"password,omitempty" json:"-"`
}

// Validate validates the persona record.
func (p *Persona) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPersona)
	}
	if p.Email == "" {
		return fmt.Errorf("%w: email is required for %s", ErrInvalidPersona, p.ID)
	}
	return nil
}

// Directory holds an immutable set of personas.
type Directory struct {
	personas []Persona
}

// NewDirectory creates a directory from the given personas.
func NewDirectory(personas []Persona) (*Directory, error) {
	if len(personas) == 0 {
		return nil, ErrEmptyDirectory
	}

	copied := make([]Persona, len(personas))
	copy(copied, personas)

	for i := range copied {
		if err := copied[i].Validate(); err != nil {
			return nil, fmt.Errorf("persona[%d]: %w", i, err)
		}
		if copied[i].Password == "" {
			copied[i].Password = defaultPassword
		}
	}

	return &Directory{personas: copied}, nil
}

// Builtin returns the directory of built-in demo personas.
func Builtin() *Directory {
	dir, err := NewDirectory(builtinRoster)
	if err != nil {
		// The built-in roster is validated by tests; this cannot happen
		// at runtime.
		panic(err)
	}
	return dir
}

// rosterFile is the on-disk roster format.
type rosterFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFromFile loads a persona roster from a YAML file.
func LoadFromFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRosterNotFound, path)
		}
		return nil, fmt.Errorf("reading roster file: %w", err)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parsing roster file: %w", err)
	}

	return NewDirectory(roster.Personas)
}

// Len returns the number of personas in the directory.
func (d *Directory) Len() int {
	return len(d.personas)
}

// All returns a copy of every persona in the directory.
func (d *Directory) All() []Persona {
	out := make([]Persona, len(d.personas))
	copy(out, d.personas)
	return out
}

// Random returns a persona selected uniformly at random using rng.
func (d *Directory) Random(rng *rand.Rand) Persona {
	return d.personas[rng.Intn(len(d.personas))]
}

// ByID returns the persona with the given ID, or false if absent.
func (d *Directory) ByID(id string) (Persona, bool) {
	for _, p := range d.personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// builtinRoster is the demo user roster the target application ships with.
var builtinRoster = []Persona{
	{ID: "usr_001", Name: "Luna Darksworth", Email: "luna@staylightly.io"},
	{ID: "usr_002", Name: "Lance Dimly", Email: "lance@darklaunchly.com"},
	{ID: "usr_003", Name: "Darcy Launch", Email: "darcy@lunchdarkly.net"},
	{ID: "usr_004", Name: "Larry Duskman", Email: "larry@launchdorkly.io"},
	{ID: "usr_005", Name: "Lydia Twilight", Email: "lydia@dimlylaunch.com"},
	{ID: "usr_006", Name: "Drake Moonson", Email: "drake@launchbrightly.io"},
	{ID: "usr_007", Name: "Dawn Flagworth", Email: "dawn@toggledarkly.com"},
	{ID: "usr_008", Name: "Felix Feature", Email: "felix@flaglaunchly.io"},
	{ID: "usr_009", Name: "Sage Rollout", Email: "sage@rolldarkly.net"},
	{ID: "usr_010", Name: "Nova Experiment", Email: "nova@launchsoftly.io"},
	{ID: "usr_011", Name: "River Toggle", Email: "river@darklylaunch.com"},
	{ID: "usr_012", Name: "Stella Variant", Email: "stella@launchquickly.io"},
	{ID: "usr_013", Name: "Atlas Segment", Email: "atlas@lightlylaunch.net"},
	{ID: "usr_014", Name: "Ivy Targeting", Email: "ivy@launchsnarkly.com"},
	{ID: "usr_015", Name: "Max Context", Email: "max@launchdimly.io"},
	{ID: "usr_016", Name: "Zara Percentage", Email: "zara@darklaunchery.net"},
	{ID: "usr_017", Name: "Quinn Prerequisite", Email: "quinn@launchduskly.com"},
	{ID: "usr_018", Name: "Blake Fallthrough", Email: "blake@dawnlaunchly.io"},
	{ID: "usr_019", Name: "Morgan Targeting", Email: "morgan@launchdaily.net"},
	{ID: "usr_020", Name: "Casey Killswitch", Email: "casey@featureflagly.com"},
}

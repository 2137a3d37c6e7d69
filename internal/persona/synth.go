package persona

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
)

// Synthesize returns n generated personas. IDs continue the usr_NNN
// numbering after the given offset so synthesized personas can be appended
// to an existing roster without collisions. A fixed seed produces the same
// roster on every run.
func Synthesize(n int, offset int, seed uint64) []Persona {
	if n <= 0 {
		return nil
	}

	faker := gofakeit.New(seed)
	personas := make([]Persona, 0, n)
	for i := 0; i < n; i++ {
		personas = append(personas, Persona{
			ID:       fmt.Sprintf("usr_%03d", offset+i+1),
			Name:     faker.Name(),
			Email:    faker.Email(),
			Password: defaultPassword,
		})
	}
	return personas
}

// WithSynthesized returns a new directory holding this directory's personas
// plus n synthesized ones.
func (d *Directory) WithSynthesized(n int, seed uint64) (*Directory, error) {
	if n <= 0 {
		return d, nil
	}
	return NewDirectory(append(d.All(), Synthesize(n, d.Len(), seed)...))
}

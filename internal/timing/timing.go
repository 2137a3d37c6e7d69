// Package timing provides the human-behavior timing model: randomized
// keystroke cadence with typo injection, and hesitation/reading delays.
// The model is pure aside from its random source; given a fixed seed it
// produces identical output, which the tests rely on.
package timing

import (
	"context"
	"math/rand"
	"time"
)

// Default delay bounds, matching observed human browsing behavior.
var (
	// HesitateBounds is a short pause before acting.
	HesitateBounds = Bounds{500 * time.Millisecond, 2 * time.Second}
	// ReadPageBounds is time spent reading a page.
	ReadPageBounds = Bounds{2 * time.Second, 5 * time.Second}
	// QuickGlanceBounds is a quick look before acting.
	QuickGlanceBounds = Bounds{500 * time.Millisecond, 1500 * time.Millisecond}
)

// Bounds is an inclusive-exclusive delay range.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

// Scaled returns the bounds with both ends multiplied by factor.
func (b Bounds) Scaled(factor float64) Bounds {
	return Bounds{
		Min: time.Duration(float64(b.Min) * factor),
		Max: time.Duration(float64(b.Max) * factor),
	}
}

// TypingProfile parameterizes human-like typing.
type TypingProfile struct {
	// WPM is the typing speed in words per minute (5 characters per word).
	WPM int

	// TypoProbability is the per-character chance of typing a wrong
	// character first and correcting it. Only letters get typos.
	TypoProbability float64
}

// Keystroke is one step of a typing plan. Delay is the pause after the
// stroke is pressed.
type Keystroke struct {
	Rune      rune
	Backspace bool
	Delay     time.Duration
}

// Model samples human-like delays from an injected random source.
// A Model is not safe for concurrent use; each session owns one.
type Model struct {
	rng   *rand.Rand
	scale float64
}

// NewModel creates a model drawing from rng. scale multiplies every sampled
// delay; tests pass a value near zero to collapse real waiting.
func NewModel(rng *rand.Rand, scale float64) *Model {
	if scale <= 0 {
		scale = 1.0
	}
	return &Model{rng: rng, scale: scale}
}

// NewSeeded creates a model with its own source seeded from seed.
func NewSeeded(seed int64, scale float64) *Model {
	return NewModel(rand.New(rand.NewSource(seed)), scale)
}

// Uniform samples a delay uniformly from b, scaled.
func (m *Model) Uniform(b Bounds) time.Duration {
	if b.Max <= b.Min {
		return time.Duration(float64(b.Min) * m.scale)
	}
	d := b.Min + time.Duration(m.rng.Int63n(int64(b.Max-b.Min)))
	return time.Duration(float64(d) * m.scale)
}

// Hesitate samples a thinking pause.
func (m *Model) Hesitate(min, max time.Duration) time.Duration {
	return m.Uniform(Bounds{min, max})
}

// ReadPage samples time spent reading a page.
func (m *Model) ReadPage(min, max time.Duration) time.Duration {
	return m.Uniform(Bounds{min, max})
}

// QuickGlance samples a quick look before acting.
func (m *Model) QuickGlance(min, max time.Duration) time.Duration {
	return m.Uniform(Bounds{min, max})
}

// Chance returns true with probability p.
func (m *Model) Chance(p float64) bool {
	return m.rng.Float64() < p
}

// Intn returns a random int in [0, n). n must be positive.
func (m *Model) Intn(n int) int {
	return m.rng.Intn(n)
}

// Between returns a random int in [min, max] inclusive.
func (m *Model) Between(min, max int) int {
	if max <= min {
		return min
	}
	return min + m.rng.Intn(max-min+1)
}

// Keystrokes builds the full typing plan for text under the given profile:
// variable per-character delays centered on the implied keystroke interval,
// longer pauses at word boundaries, and occasional wrong-character strokes
// followed by a backspace and the correction.
func (m *Model) Keystrokes(text string, profile TypingProfile) []Keystroke {
	wpm := profile.WPM
	if wpm <= 0 {
		wpm = 40
	}

	// Average typing speed assumes 5 characters per word.
	base := time.Duration(60.0 / (float64(wpm) * 5.0) * float64(time.Second))

	strokes := make([]Keystroke, 0, len(text))
	for _, ch := range text {
		if profile.TypoProbability > 0 && isLetter(ch) && m.Chance(profile.TypoProbability) {
			wrong := rune('a' + m.rng.Intn(26))
			strokes = append(strokes, Keystroke{
				Rune: wrong,
				// Pause to "notice" the mistake before fixing it.
				Delay: m.Uniform(Bounds{base / 2, base * 3 / 2}) +
					m.Uniform(Bounds{300 * time.Millisecond, 800 * time.Millisecond}),
			})
			strokes = append(strokes, Keystroke{
				Backspace: true,
				Delay:     m.Uniform(Bounds{100 * time.Millisecond, 300 * time.Millisecond}),
			})
		}

		delay := m.Uniform(Bounds{base / 2, base * 2})
		if isWordBoundary(ch) {
			multiplier := 1.5 + m.rng.Float64()*1.5
			delay = time.Duration(float64(delay) * multiplier)
		}
		strokes = append(strokes, Keystroke{Rune: ch, Delay: delay})
	}

	return strokes
}

// TotalDelay returns the summed delay of a typing plan.
func TotalDelay(strokes []Keystroke) time.Duration {
	var total time.Duration
	for _, s := range strokes {
		total += s.Delay
	}
	return total
}

// Sleep suspends for d or until ctx is cancelled, whichever comes first.
// It returns ctx.Err() when cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isWordBoundary(ch rune) bool {
	switch ch {
	case ' ', '.', ',', '!', '?':
		return true
	}
	return false
}

package timing

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniform_WithinBounds(t *testing.T) {
	m := NewSeeded(1, 1.0)
	b := Bounds{100 * time.Millisecond, 500 * time.Millisecond}

	for i := 0; i < 1000; i++ {
		d := m.Uniform(b)
		assert.GreaterOrEqual(t, d, b.Min)
		assert.Less(t, d, b.Max)
	}
}

func TestUniform_DegenerateBounds(t *testing.T) {
	m := NewSeeded(1, 1.0)
	assert.Equal(t, time.Second, m.Uniform(Bounds{time.Second, time.Second}))
}

func TestUniform_Scaled(t *testing.T) {
	m := NewSeeded(1, 0.01)
	b := Bounds{time.Second, 2 * time.Second}

	for i := 0; i < 100; i++ {
		d := m.Uniform(b)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}

func TestBounds_Scaled(t *testing.T) {
	b := Bounds{time.Second, 4 * time.Second}.Scaled(0.5)
	assert.Equal(t, 500*time.Millisecond, b.Min)
	assert.Equal(t, 2*time.Second, b.Max)
}

func TestChance(t *testing.T) {
	m := NewSeeded(1, 1.0)
	for i := 0; i < 100; i++ {
		assert.False(t, m.Chance(0))
		assert.True(t, m.Chance(1))
	}
}

func TestBetween(t *testing.T) {
	m := NewSeeded(1, 1.0)
	for i := 0; i < 1000; i++ {
		n := m.Between(2, 5)
		assert.GreaterOrEqual(t, n, 2)
		assert.LessOrEqual(t, n, 5)
	}
	assert.Equal(t, 3, m.Between(3, 3))
	assert.Equal(t, 3, m.Between(3, 1))
}

func TestKeystrokes_Deterministic(t *testing.T) {
	profile := TypingProfile{WPM: 40, TypoProbability: 0.10}

	a := NewSeeded(42, 1.0).Keystrokes("feature flags", profile)
	b := NewSeeded(42, 1.0).Keystrokes("feature flags", profile)
	assert.Equal(t, a, b)
}

func TestKeystrokes_NoTypos(t *testing.T) {
	m := NewSeeded(7, 1.0)
	strokes := m.Keystrokes("hello world", TypingProfile{WPM: 40})

	require.Len(t, strokes, len("hello world"))
	var typed []rune
	for _, s := range strokes {
		assert.False(t, s.Backspace)
		assert.Greater(t, s.Delay, time.Duration(0))
		typed = append(typed, s.Rune)
	}
	assert.Equal(t, "hello world", string(typed))
}

func TestKeystrokes_AlwaysTypo(t *testing.T) {
	m := NewSeeded(7, 1.0)
	strokes := m.Keystrokes("abc", TypingProfile{WPM: 40, TypoProbability: 1.0})

	// Every letter becomes wrong stroke, backspace, correction.
	require.Len(t, strokes, 9)
	for i := 0; i < len(strokes); i += 3 {
		assert.False(t, strokes[i].Backspace)
		assert.True(t, strokes[i+1].Backspace)
		assert.False(t, strokes[i+2].Backspace)
	}

	// Replaying the plan through a backspace-aware buffer yields the text.
	var out []rune
	for _, s := range strokes {
		if s.Backspace {
			out = out[:len(out)-1]
			continue
		}
		out = append(out, s.Rune)
	}
	assert.Equal(t, "abc", string(out))
}

func TestKeystrokes_TyposSkipNonLetters(t *testing.T) {
	m := NewSeeded(7, 1.0)
	strokes := m.Keystrokes("12 34", TypingProfile{WPM: 40, TypoProbability: 1.0})

	// Digits and spaces never get typos.
	require.Len(t, strokes, 5)
	for _, s := range strokes {
		assert.False(t, s.Backspace)
	}
}

func TestKeystrokes_DefaultsWPM(t *testing.T) {
	m := NewSeeded(7, 1.0)
	strokes := m.Keystrokes("x", TypingProfile{})
	require.Len(t, strokes, 1)
	assert.Greater(t, strokes[0].Delay, time.Duration(0))
}

func TestTotalDelay(t *testing.T) {
	strokes := []Keystroke{
		{Rune: 'a', Delay: 100 * time.Millisecond},
		{Backspace: true, Delay: 50 * time.Millisecond},
		{Rune: 'b', Delay: 150 * time.Millisecond},
	}
	assert.Equal(t, 300*time.Millisecond, TotalDelay(strokes))
}

func TestNewModel_FloorsScale(t *testing.T) {
	m := NewModel(rand.New(rand.NewSource(1)), -1)
	d := m.Uniform(Bounds{time.Second, time.Second + time.Nanosecond})
	assert.GreaterOrEqual(t, d, time.Second)
}

func TestSleep(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		err := Sleep(context.Background(), time.Millisecond)
		assert.NoError(t, err)
	})

	t.Run("zero duration", func(t *testing.T) {
		err := Sleep(context.Background(), 0)
		assert.NoError(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Sleep(ctx, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("cancel mid-sleep", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		start := time.Now()
		err := Sleep(ctx, time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestWordBoundaryDelays(t *testing.T) {
	// At a word boundary the delay gets a 1.5-3x multiplier, so across the
	// distribution boundary strokes must be slower on average.
	m := NewSeeded(11, 1.0)
	profile := TypingProfile{WPM: 40}

	var boundary, letter time.Duration
	var nBoundary, nLetter int
	for i := 0; i < 200; i++ {
		for _, s := range m.Keystrokes("ab cd ef", profile) {
			if s.Rune == ' ' {
				boundary += s.Delay
				nBoundary++
			} else {
				letter += s.Delay
				nLetter++
			}
		}
	}

	avgBoundary := boundary / time.Duration(nBoundary)
	avgLetter := letter / time.Duration(nLetter)
	assert.Greater(t, avgBoundary, avgLetter)
}

package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeDriver_OpenPage(t *testing.T) {
	d := NewFakeDriver()

	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, 1, d.OpenCount())
}

func TestFakeDriver_OpenErr(t *testing.T) {
	d := NewFakeDriver()
	d.OpenErr = errors.New("boom")

	_, err := d.OpenPage(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, d.OpenCount())
}

func TestFakePage_RecordsCalls(t *testing.T) {
	d := NewFakeDriver()
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, page.Navigate(ctx, "http://localhost:3000/"))
	require.NoError(t, page.Click(ctx, "#button"))
	require.NoError(t, page.SendKeys(ctx, "#input", "hi"))

	fake := d.Pages()[0]
	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, Call{Op: "navigate", Arg: "http://localhost:3000/"}, calls[0])
	assert.Equal(t, Call{Op: "click", Arg: "#button"}, calls[1])

	assert.Len(t, fake.CallsFor("navigate"), 1)
	assert.Empty(t, fake.CallsFor("goback"))
}

func TestFakePage_TypedInto(t *testing.T) {
	d := NewFakeDriver()
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	// Type "cat", mistype one character and fix it.
	require.NoError(t, page.SendKeys(ctx, "#search", "c"))
	require.NoError(t, page.SendKeys(ctx, "#search", "x"))
	require.NoError(t, page.SendKeys(ctx, "#search", Backspace))
	require.NoError(t, page.SendKeys(ctx, "#search", "a"))
	require.NoError(t, page.SendKeys(ctx, "#search", "t"))
	// Keys to another field must not leak in.
	require.NoError(t, page.SendKeys(ctx, "#other", "zzz"))

	fake := d.Pages()[0]
	assert.Equal(t, "cat", fake.TypedInto("#search"))
	assert.Equal(t, "zzz", fake.TypedInto("#other"))
}

func TestFakePage_ScriptedSelectors(t *testing.T) {
	d := NewFakeDriver()
	d.PageDefaults = FakePageConfig{
		ExistsFn:  func(sel string) bool { return sel != "#missing" },
		WaitForFn: func(sel string) bool { return sel == "#ready" },
		TextFn:    func(sel string) string { return "hello" },
	}
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	ctx := context.Background()

	ok, err := page.Exists(ctx, "#present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = page.Exists(ctx, "#missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, page.Click(ctx, "#missing"), ErrElementNotFound)
	assert.True(t, page.WaitFor(ctx, "#ready", time.Second))
	assert.False(t, page.WaitFor(ctx, "#pending", time.Second))

	text, err := page.ReadText(ctx, "#title")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestFakePage_NavigateErr(t *testing.T) {
	d := NewFakeDriver()
	d.PageDefaults = FakePageConfig{
		NavigateErr: func(url string) error {
			if url == "http://localhost:3000/products" {
				return ErrNavigation
			}
			return nil
		},
	}
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, page.Navigate(ctx, "http://localhost:3000/"))
	assert.ErrorIs(t, page.Navigate(ctx, "http://localhost:3000/products"), ErrNavigation)
}

func TestFakePage_CallDelayHonorsContext(t *testing.T) {
	d := NewFakeDriver()
	d.PageDefaults = FakePageConfig{CallDelay: time.Minute}
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = page.Navigate(ctx, "http://localhost:3000/")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFakePage_Close(t *testing.T) {
	d := NewFakeDriver()
	page, err := d.OpenPage(context.Background())
	require.NoError(t, err)

	fake := d.Pages()[0]
	assert.False(t, fake.Closed())
	require.NoError(t, page.Close())
	assert.True(t, fake.Closed())
	assert.False(t, fake.ClosedAt.IsZero())

	// Calls after close fail.
	assert.ErrorIs(t, page.Navigate(context.Background(), "x"), ErrPageClosed)
	// Closing twice is fine.
	assert.NoError(t, page.Close())
}

package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthdaybot/internal/domain"
)

func TestReminderTexts(t *testing.T) {
	t.Parallel()

	c, err := Load("en", []string{"en", "ru"})
	require.NoError(t, err)

	assert.Equal(t, "Today is Ann's birthday! 🎉", c.Reminder("en", domain.OnTheDay, "Ann"))
	assert.Equal(t, "Your friend Ann's birthday is coming soon! 🎉", c.Reminder("", domain.OneDayAhead, "Ann"))
	assert.Equal(t, "Сегодня день рождения у Ани! 🎉", c.Reminder("ru", domain.OnTheDay, "Ани"))
}

func TestMatchFallsBack(t *testing.T) {
	t.Parallel()

	c, err := Load("en", []string{"ru"})
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, c.Supported())
	assert.Equal(t, "ru", c.Match("ru"))
	assert.Equal(t, "ru", c.Match("ru-RU"))
	assert.Equal(t, "en", c.Match("en-GB"))
	assert.Equal(t, "en", c.Match("ja"))
	assert.Equal(t, "en", c.Match("not a tag"))
	assert.Equal(t, "en", c.Match(""))
}

func TestCatalogsShareKeys(t *testing.T) {
	t.Parallel()

	c, err := Load("ru", []string{"en"})
	require.NoError(t, err)
	for _, k := range c.Keys() {
		assert.NotEqual(t, k, c.T("en", k), "en lacks %s", k)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	c, err := Load("en", nil)
	require.NoError(t, err)
	got := c.T("en", KeyListItem, "n", 2, "date", "05.11", "name", "Bob", "days", 3)
	assert.Equal(t, "2. 05.11 Bob, in 3 d.", got)
	assert.Equal(t, "no.such.key", c.T("en", "no.such.key"))
}

func TestLoadRejectsIncompleteCatalog(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"l/en.yaml": {Data: []byte("a: A\nb:\n  c: C\n")},
		"l/de.yaml": {Data: []byte("a: A\n")},
	}
	_, err := LoadFS(fsys, "l", "en", []string{"de"})
	assert.ErrorContains(t, err, `lacks key "b.c"`)

	_, err = LoadFS(fsys, "l", "en", []string{"fr"})
	assert.Error(t, err)
}

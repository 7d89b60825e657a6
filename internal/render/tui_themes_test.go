package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTUIThemes(t *testing.T) {
	names := TUIThemeNames()
	require.Len(t, names, 3)

	for _, name := range names {
		theme, ok := GetTUIThemeByName(name)
		require.True(t, ok, "theme %s not found", name)
		assert.Equal(t, name, theme.Name)
		assert.NotEmpty(t, theme.Primary, name)
		assert.NotEmpty(t, theme.Secondary, name)
		assert.NotEmpty(t, theme.Error, name)
		assert.NotEmpty(t, theme.Text, name)
	}
}

func TestSetTUITheme(t *testing.T) {
	t.Cleanup(func() { SetTUITheme(DefaultTUITheme) })

	require.True(t, SetTUITheme("nord"))
	assert.Equal(t, "nord", GetTUITheme().Name)

	assert.False(t, SetTUITheme("nonexistent"))
	assert.Equal(t, "nord", GetTUITheme().Name, "unknown theme leaves the active one")
}

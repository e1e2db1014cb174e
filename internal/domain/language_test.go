package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLanguage(t *testing.T) {
	for in, want := range map[string]string{"ES": "es", "es-MX": "es", " de ": "de", "pt-BR": "pt"} {
		got, ok := NormalizeLanguage(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "  ", "not a language"} {
		_, ok := NormalizeLanguage(in)
		assert.False(t, ok, in)
	}
}

func TestLanguages(t *testing.T) {
	l, err := NewLanguages("FR", []string{"en", "fr", "es-ES"})
	require.NoError(t, err)
	assert.Equal(t, "fr", l.Base())
	assert.Equal(t, []string{"fr", "en", "es"}, l.List())

	n, ok := l.Supported("EN-gb")
	assert.True(t, ok)
	assert.Equal(t, "en", n)
	_, ok = l.Supported("ja")
	assert.False(t, ok)
	assert.Equal(t, "fr", l.OrBase("ja"))

	_, err = NewLanguages("", nil)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

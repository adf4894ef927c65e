package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type loadConfig struct {
	language string
	strict   bool
	calls    []string
}

type loadOption = Option[*loadConfig]

func withLanguage(lang string) loadOption {
	return New(func(c *loadConfig) error {
		if lang == "" {
			return errors.New("empty language")
		}
		c.language = lang
		c.calls = append(c.calls, "language")

		return nil
	})
}

func withStrict() loadOption {
	return NoError(func(c *loadConfig) {
		c.strict = true
		c.calls = append(c.calls, "strict")
	})
}

func TestApply(t *testing.T) {
	t.Run("in order", func(t *testing.T) {
		c := &loadConfig{}
		require.NoError(t, Apply(c, withStrict(), withLanguage("english")))
		require.Equal(t, "english", c.language)
		require.True(t, c.strict)
		require.Equal(t, []string{"strict", "language"}, c.calls)
	})

	t.Run("stops at the first error", func(t *testing.T) {
		c := &loadConfig{}
		err := Apply(c, withLanguage(""), withStrict())
		require.EqualError(t, err, "empty language")
		require.False(t, c.strict)
		require.Empty(t, c.calls)
	})

	t.Run("skips nil options", func(t *testing.T) {
		c := &loadConfig{}
		require.NoError(t, Apply(c, nil, withStrict()))
		require.True(t, c.strict)
	})

	t.Run("no options", func(t *testing.T) {
		c := &loadConfig{language: "french"}
		require.NoError(t, Apply(c))
		require.Equal(t, "french", c.language)
	})
}

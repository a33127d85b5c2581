package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModule_Target(t *testing.T) {
	m := NewModule(Config{URL: "https://example.com", Title: "Home"})

	t.Run("native platforms embed", func(t *testing.T) {
		for _, p := range []Platform{PlatformIOS, PlatformAndroid} {
			target := m.Target(p)
			assert.Equal(t, "https://example.com", target.URL)
			assert.Equal(t, "Home", target.Title)
			assert.True(t, target.Embeddable)
			assert.Empty(t, target.Action)
		}
	})

	t.Run("web opens externally", func(t *testing.T) {
		target := m.Target(PlatformWeb)
		assert.False(t, target.Embeddable)
		assert.Equal(t, ActionOpenExternally, target.Action)
	})
}

func TestParsePlatform(t *testing.T) {
	tests := map[string]Platform{
		"ios":      PlatformIOS,
		" Android": PlatformAndroid,
		"web":      PlatformWeb,
		"":         PlatformWeb,
		"symbian":  PlatformWeb,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePlatform(in), in)
	}
}

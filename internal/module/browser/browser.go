package browser

import (
	"strings"
)

// Platform identifies the client rendering the shell.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// ActionOpenExternally tells the client to open the URL in a new window.
const ActionOpenExternally = "open_externally"

// Config is the fixed browser tab target.
type Config struct {
	URL   string
	Title string
}

// Target describes how a client should show the browser tab.
type Target struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Embeddable bool   `json:"embeddable"`
	Action     string `json:"action,omitempty"`
}

// Module serves the browser tab target.
type Module struct {
	config Config
}

// NewModule creates a browser module.
func NewModule(cfg Config) *Module {
	return &Module{config: cfg}
}

// Target returns the browser tab target for platform. Web clients cannot
// embed a third-party page and are told to open it externally.
func (m *Module) Target(platform Platform) *Target {
	t := &Target{
		URL:        m.config.URL,
		Title:      m.config.Title,
		Embeddable: true,
	}
	if platform == PlatformWeb {
		t.Embeddable = false
		t.Action = ActionOpenExternally
	}
	return t
}

// ParsePlatform normalizes a client-supplied platform name. Unknown values
// are treated as web.
func ParsePlatform(s string) Platform {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformIOS, PlatformAndroid:
		return p
	default:
		return PlatformWeb
	}
}

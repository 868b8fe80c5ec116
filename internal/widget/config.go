package widget

import (
	"dorthy/internal/content"
	"dorthy/internal/prefs"
)

const (
	EventReady        = "ready"
	EventThreadChange = "thread.change"
	EventError        = "error"
	EventDispose      = "dispose"
)

// Settings carries the transport target. A placeholder domain key works
// locally; production needs a key registered for the serving domain.
type Settings struct {
	APIURL        string
	DomainKey     string
	EventEndpoint string
}

type Config struct {
	API               APIConfig         `json:"api"`
	Theme             ThemeConfig       `json:"theme"`
	StartScreen       StartScreen       `json:"startScreen"`
	Composer          ComposerConfig    `json:"composer"`
	ThreadItemActions ThreadItemActions `json:"threadItemActions"`
	Callbacks         CallbackBindings  `json:"callbacks"`
}

type APIConfig struct {
	URL       string `json:"url"`
	DomainKey string `json:"domainKey"`
}

type ThemeConfig struct {
	ColorScheme string      `json:"colorScheme"`
	Density     string      `json:"density"`
	Radius      string      `json:"radius"`
	Color       ThemeColors `json:"color"`
}

type ThemeColors struct {
	Grayscale Grayscale `json:"grayscale"`
	Accent    Accent    `json:"accent"`
}

type Grayscale struct {
	Hue   int `json:"hue"`
	Tint  int `json:"tint"`
	Shade int `json:"shade"`
}

type Accent struct {
	Primary string `json:"primary"`
	Level   int    `json:"level"`
}

type StartScreen struct {
	Greeting string                  `json:"greeting"`
	Prompts  []content.StarterPrompt `json:"prompts"`
}

type ComposerConfig struct {
	Placeholder string `json:"placeholder"`
}

type ThreadItemActions struct {
	Feedback bool `json:"feedback"`
}

// CallbackBindings tells the page bridge which widget events to forward
// and where.
type CallbackBindings struct {
	Endpoint string   `json:"endpoint"`
	Events   []string `json:"events"`
}

type buildOptions struct {
	placeholder content.PlaceholderFunc
	feedback    bool
	brand       ThemeColors
}

type Option func(*buildOptions)

func WithPlaceholder(fn content.PlaceholderFunc) Option {
	return func(o *buildOptions) {
		if fn != nil {
			o.placeholder = fn
		}
	}
}

func WithFeedback(enabled bool) Option {
	return func(o *buildOptions) {
		o.feedback = enabled
	}
}

func WithBrandColors(colors ThemeColors) Option {
	return func(o *buildOptions) {
		o.brand = colors
	}
}

func DefaultBrandColors() ThemeColors {
	return ThemeColors{
		Grayscale: Grayscale{Hue: 185},
		Accent:    Accent{Primary: "#f1bd3f", Level: 1},
	}
}

// Build assembles the widget configuration for one render. It has no side
// effects; the scheme flows into the theme and nothing flows back.
func Build(scheme prefs.Scheme, table content.Table, settings Settings, opts ...Option) Config {
	options := buildOptions{
		placeholder: content.StaticPlaceholder,
		brand:       DefaultBrandColors(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if !scheme.Valid() {
		scheme = prefs.SchemeLight
	}

	prompts := make([]content.StarterPrompt, len(table.Prompts))
	copy(prompts, table.Prompts)

	return Config{
		API: APIConfig{
			URL:       settings.APIURL,
			DomainKey: settings.DomainKey,
		},
		Theme: ThemeConfig{
			ColorScheme: string(scheme),
			Density:     "spacious",
			Radius:      "round",
			Color:       options.brand,
		},
		StartScreen: StartScreen{
			Greeting: table.Greeting,
			Prompts:  prompts,
		},
		Composer: ComposerConfig{
			Placeholder: options.placeholder(table),
		},
		ThreadItemActions: ThreadItemActions{
			Feedback: options.feedback,
		},
		Callbacks: CallbackBindings{
			Endpoint: settings.EventEndpoint,
			Events:   []string{EventReady, EventThreadChange, EventError},
		},
	}
}

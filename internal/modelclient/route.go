package modelclient

import (
	"strings"
)

// Provider names a backend that serves model calls.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGemini     Provider = "gemini"
)

// Route is a model id resolved to its provider.
type Route struct {
	Provider Provider
	Model    string
}

func (r Route) String() string {
	if r.Provider == ProviderOpenRouter {
		return r.Model
	}
	return string(r.Provider) + ":" + r.Model
}

// ParseRoute resolves a model id. "anthropic:<id>" and "gemini:<id>" pick
// those providers; "openrouter:<id>" is accepted explicitly; anything else,
// including OpenRouter ids with a ":free" suffix, goes to OpenRouter.
func ParseRoute(model string) Route {
	prefix, rest, ok := strings.Cut(model, ":")
	if !ok || rest == "" || strings.Contains(prefix, "/") {
		return Route{Provider: ProviderOpenRouter, Model: model}
	}
	switch Provider(strings.ToLower(prefix)) {
	case ProviderAnthropic:
		return Route{Provider: ProviderAnthropic, Model: rest}
	case ProviderGemini:
		return Route{Provider: ProviderGemini, Model: rest}
	case ProviderOpenRouter:
		return Route{Provider: ProviderOpenRouter, Model: rest}
	default:
		return Route{Provider: ProviderOpenRouter, Model: model}
	}
}

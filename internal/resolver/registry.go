package resolver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/teleload/internal/config"
)

// Factory builds a provider for a configured base URL.
type Factory func(baseURL string, client *http.Client) Provider

var builtins = map[string]Factory{
	"tiklydown": NewTiklydown,
	"tikwm":     NewTikwm,
}

// Build turns the configured chain into providers, preserving order.
func Build(cfgs []config.ProviderConfig, client *http.Client) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	var unknown []string
	for _, c := range cfgs {
		factory, ok := builtins[strings.ToLower(strings.TrimSpace(c.Name))]
		if !ok {
			unknown = append(unknown, c.Name)
			continue
		}
		providers = append(providers, factory(c.BaseURL, client))
	}
	if len(unknown) > 0 {
		return providers, fmt.Errorf("%w: %s", ErrUnknownProvider, strings.Join(unknown, ","))
	}
	return providers, nil
}

package config

import "testing"

func TestValidateResolverConfigRequiresEnabledProvider(t *testing.T) {
	cfg := ResolverConfig{
		Providers: []ProviderConfig{{Name: "tikwm", BaseURL: "https://tikwm.com", Enabled: false}},
	}
	if err := validateResolverConfig(cfg); err == nil {
		t.Fatal("expected error for chain with no enabled providers")
	}
}

func TestValidateResolverConfigRequiresBaseURL(t *testing.T) {
	cfg := ResolverConfig{
		Providers: []ProviderConfig{{Name: "tikwm", Enabled: true}},
	}
	if err := validateResolverConfig(cfg); err == nil {
		t.Fatal("expected error for enabled provider without base url")
	}
}

func TestEnabledProvidersKeepsOrder(t *testing.T) {
	cfg := ResolverConfig{
		Providers: []ProviderConfig{
			{Name: "a", BaseURL: "http://a", Enabled: true},
			{Name: "b", BaseURL: "http://b", Enabled: false},
			{Name: "c", BaseURL: "http://c", Enabled: true},
		},
	}
	got := cfg.EnabledProviders()
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("unexpected providers %+v", got)
	}
}

func TestDefaultResolverConfigIsValid(t *testing.T) {
	cfg := DefaultResolverConfig()
	if err := validateResolverConfig(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.PreferVideo {
		t.Fatal("expected video preference by default")
	}
}

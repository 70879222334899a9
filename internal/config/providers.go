package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ProviderConfig describes one upstream extraction service in the resolver chain.
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"baseURL"`
	Enabled bool   `mapstructure:"enabled"`
}

// ResolverConfig is the ordered provider chain. Order is the preference ranking.
type ResolverConfig struct {
	PreferVideo bool             `mapstructure:"preferVideo"`
	Providers   []ProviderConfig `mapstructure:"providers"`
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		PreferVideo: true,
		Providers: []ProviderConfig{
			{Name: "tiklydown", BaseURL: "https://api.tiklydown.eu.org", Enabled: true},
			{Name: "tikwm", BaseURL: "https://tikwm.com", Enabled: true},
		},
	}
}

// EnabledProviders returns the enabled providers in chain order.
func (c ResolverConfig) EnabledProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

type ProviderConfigHolder struct {
	current atomic.Value // holds ResolverConfig
}

// NewStaticProviderConfigHolder returns a holder that never reloads.
func NewStaticProviderConfigHolder(cfg ResolverConfig) *ProviderConfigHolder {
	holder := &ProviderConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewProviderConfigHolder(log *zap.Logger) (*ProviderConfigHolder, error) {
	log = log.Named("config.providers")
	v := viper.New()

	v.SetConfigName("providers")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/teleload")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TELELOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultResolverConfig()
	if fileFound {
		if err := v.UnmarshalKey("resolver", &cfg); err != nil {
			return nil, err
		}
	}
	if err := validateResolverConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticProviderConfigHolder(cfg)
	if !fileFound {
		log.Info("providers file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultResolverConfig()
		if err := v.UnmarshalKey("resolver", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateResolverConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name), zap.Int("providers", len(updated.EnabledProviders())))
	})

	return holder, nil
}

func (h *ProviderConfigHolder) Get() ResolverConfig {
	return h.current.Load().(ResolverConfig)
}

func validateResolverConfig(cfg ResolverConfig) error {
	if len(cfg.EnabledProviders()) == 0 {
		return errors.New("resolver.providers must enable at least one provider")
	}
	for _, p := range cfg.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("resolver.providers[].name cannot be empty")
		}
		if p.Enabled && strings.TrimSpace(p.BaseURL) == "" {
			return errors.New("resolver.providers[].baseURL cannot be empty")
		}
	}
	return nil
}

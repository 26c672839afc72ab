package config

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the Config stored by NewContext, or the defaults when
// none was stored.
func FromContext(ctx context.Context) (*Config, error) {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok && cfg != nil {
		return cfg, nil
	}
	return Default()
}

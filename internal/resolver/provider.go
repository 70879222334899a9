package resolver

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUpstreamStatus   = errors.New("upstream_status")
	ErrMalformedPayload = errors.New("malformed_payload")
	ErrUnknownProvider  = errors.New("unknown_provider")
)

// Payload is a provider answer already mapped out of its own JSON shape.
// A payload may carry both a video and photos; the resolver picks one.
type Payload struct {
	VideoURL string
	Photos   []Photo
	Title    string
}

func (p Payload) Empty() bool {
	return strings.TrimSpace(p.VideoURL) == "" && len(p.Photos) == 0
}

type Provider interface {
	Name() string
	Fetch(ctx context.Context, sourceURL string) (Payload, error)
}

// ProviderFunc adapts a function into a Provider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, sourceURL string) (Payload, error)
}

func (p ProviderFunc) Name() string {
	return p.ProviderName
}

func (p ProviderFunc) Fetch(ctx context.Context, sourceURL string) (Payload, error) {
	if p.Fn == nil {
		return Payload{}, nil
	}
	return p.Fn(ctx, sourceURL)
}

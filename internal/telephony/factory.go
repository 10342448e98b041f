package telephony

import (
	"fmt"
	"net/http"

	"telephony-gateway/internal/config"
)

// NewFromConfig selects and constructs the adapter named by cfg.Provider. Missing credentials
// are a configuration error; no adapter is returned in that case.
//
// Defaults derived from cfg (HTTP timeout, public URL) come first, so opts override them.
func NewFromConfig(cfg config.Config, opts ...Option) (Provider, error) {
	base := []Option{WithPublicURL(cfg.Server.PublicURL)}
	if cfg.Outbound.HTTPTimeout > 0 {
		base = append(base, WithHTTPClient(&http.Client{Timeout: cfg.Outbound.HTTPTimeout}))
	}
	all := append(base, opts...)

	var (
		p   Provider
		err error
	)
	switch ProviderName(cfg.Provider) {
	case ProviderTwilio:
		p, err = asProvider(NewTwilio(cfg.Twilio, all...))
	case ProviderTelnyx:
		p, err = asProvider(NewTelnyx(cfg.Telnyx, all...))
	case ProviderPlivo:
		p, err = asProvider(NewPlivo(cfg.Plivo, all...))
	case ProviderMock:
		p = NewMock(all...)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// asProvider keeps a failed constructor from leaking a typed nil into the interface.
func asProvider[T Provider](p T, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

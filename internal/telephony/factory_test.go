package telephony

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telephony-gateway/internal/config"
)

func TestNewFromConfig_SelectsAdapter(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Config
		want ProviderName
	}{
		{"mock", config.Config{Provider: "mock"}, ProviderMock},
		{"twilio", config.Config{Provider: "twilio", Twilio: config.TwilioConfig{AccountSID: "AC", AuthToken: "t", FromNumber: "+1"}}, ProviderTwilio},
		{"telnyx", config.Config{Provider: "telnyx", Telnyx: config.TelnyxConfig{APIKey: "k"}}, ProviderTelnyx},
		{"plivo", config.Config{Provider: "plivo", Plivo: config.PlivoConfig{AuthID: "MA", AuthToken: "t"}}, ProviderPlivo},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewFromConfig(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
			_, ok := p.(CallInitiator)
			assert.True(t, ok, "%s should place calls", tt.name)
		})
	}
}

func TestNewFromConfig_MissingCredentialsFailLoudly(t *testing.T) {
	for _, name := range []string{"twilio", "telnyx", "plivo"} {
		t.Run(name, func(t *testing.T) {
			p, err := NewFromConfig(config.Config{Provider: name})
			require.ErrorIs(t, err, ErrMissingCredentials)
			assert.Nil(t, p)
		})
	}
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	p, err := NewFromConfig(config.Config{Provider: "nexmo"})
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.Nil(t, p)
}

func TestNewFromConfig_OptionsOverrideConfig(t *testing.T) {
	api := newFakeAPI(t, "/v2/messages", http.StatusOK, `{"data":{"id":"x"}}`)
	cfg := config.Config{
		Provider: "telnyx",
		Telnyx:   config.TelnyxConfig{APIKey: "k", FromNumber: "+1", BaseURL: "http://127.0.0.1:1"},
	}
	p, err := NewFromConfig(cfg, WithBaseURL(api.URL()))
	require.NoError(t, err)

	_, err = p.SendSMS(context.Background(), SendSMSParams{To: "+2", Body: "hi"})
	require.NoError(t, err)
	assert.Len(t, api.Requests(), 1)
}

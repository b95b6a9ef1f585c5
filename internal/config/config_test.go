package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"randomvoice/native/internal/domain"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := fromEnv(env(map[string]string{"RV_API": "http://localhost:3001"}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001", cfg.API)
	assert.Empty(t, cfg.Nickname)
	assert.Equal(t, domain.DefaultICEServers(), cfg.ICEServers)
	assert.Empty(t, cfg.ICEURL)
	assert.Equal(t, "127.0.0.1:5004", cfg.CaptureAddr)
	assert.Equal(t, "partner.ogg", cfg.PlaybackPath)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, 15*time.Second, cfg.ConnectivityTimeout)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
	assert.False(t, cfg.Debug)
}

func TestFromEnv_RequiresAPI(t *testing.T) {
	_, err := fromEnv(env(nil))
	assert.ErrorContains(t, err, "RV_API")
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := fromEnv(env(map[string]string{
		"RV_API":                  "https://voice.example.com",
		"RV_NICKNAME":             "alice",
		"RV_ICE_SERVERS":          `[{"urls":"turn:turn.example.com:3478","username":"u","credential":"c"},{"urls":["stun:a:3478","stun:b:3478"]}]`,
		"RV_ICE_URL":              "https://app.metered.live/api/v1/turn/credentials?apiKey=k",
		"RV_CAPTURE_ADDR":         "0.0.0.0:6000",
		"RV_PLAYBACK_PATH":        "/tmp/out.ogg",
		"RV_METRICS_ADDR":         ":9090",
		"RV_CONNECTIVITY_TIMEOUT": "0s",
		"RV_PING_INTERVAL":        "10s",
		"RV_DEBUG":                "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Nickname)
	assert.Equal(t, []domain.ICEServer{
		{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "c"},
		{URLs: []string{"stun:a:3478", "stun:b:3478"}},
	}, cfg.ICEServers)
	assert.Equal(t, "https://app.metered.live/api/v1/turn/credentials?apiKey=k", cfg.ICEURL)
	assert.Equal(t, "0.0.0.0:6000", cfg.CaptureAddr)
	assert.Equal(t, "/tmp/out.ogg", cfg.PlaybackPath)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, time.Duration(0), cfg.ConnectivityTimeout)
	assert.Equal(t, 10*time.Second, cfg.PingInterval)
	assert.True(t, cfg.Debug)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"ice json":       {"RV_ICE_SERVERS": `{"urls":`},
		"ice no urls":    {"RV_ICE_SERVERS": `[{"username":"u"}]`},
		"ice empty list": {"RV_ICE_SERVERS": `[{"urls":[]}]`},
		"timeout":        {"RV_CONNECTIVITY_TIMEOUT": "soon"},
		"negative ping":  {"RV_PING_INTERVAL": "-1s"},
		"debug":          {"RV_DEBUG": "maybe"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			vars["RV_API"] = "http://localhost:3001"
			_, err := fromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}

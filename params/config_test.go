package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Validate())
	require.Equal(t, 5*time.Second, c.CheckTimeout())
	require.Equal(t, 10*time.Second, c.CheckInterval())
	require.True(t, c.AutoSwitch)
}

func TestLoadConfigFromJSON(t *testing.T) {
	c, err := LoadConfigFromJSON(`{
		"check_timeout_ms": 2000,
		"endpoints": [
			{"address": "http://localhost:18081", "priority": 1},
			{"address": "http://node.example.org:18081", "username": "wallet", "secret": "s3cret", "priority": 2}
		]
	}`)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, c.CheckTimeout())
	// omitted fields keep defaults
	require.Equal(t, 10*time.Second, c.CheckInterval())
	require.Len(t, c.Endpoints, 2)
	require.Equal(t, "wallet", c.Endpoints[1].Username)
}

func TestLoadConfigFromJSONInvalid(t *testing.T) {
	testCases := []struct {
		name string
		json string
	}{
		{"malformed document", `{`},
		{"zero timeout", `{"check_timeout_ms": 0}`},
		{"negative interval", `{"check_interval_ms": -5}`},
		{"missing address", `{"endpoints": [{"priority": 1}]}`},
		{"negative priority", `{"endpoints": [{"address": "http://a:1", "priority": -1}]}`},
		{"duplicate address", `{"endpoints": [
			{"address": "http://a:1", "priority": 1},
			{"address": "http://a:1", "priority": 2}
		]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigFromJSON(tc.json)
			require.Error(t, err)
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObservabilityConfigEnvValidation(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name: "Should load valid observability port and timeout",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_PORT":    "9090",
				"VALKYRIE_OBSERVABILITY_TIMEOUT": "1s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "9090", cfg.Observability.Port)
				assert.Equal(t, 1*time.Second, cfg.Observability.Timeout)
				assert.Equal(t, 15*time.Second, cfg.Observability.MonitorInterval)
			},
			wantErr: false,
		},
		{
			name: "Should fail validation on port too low",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_PORT": "0",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on port too high",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_PORT": "65536",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on timeout too short",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_TIMEOUT": "999ms",
			}),
			wantErr: true,
		},
		{
			name: "Should load a custom monitor interval",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_MONITOR_INTERVAL": "30s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.Observability.MonitorInterval)
			},
		},
		{
			name: "Should fail validation on monitor interval too short",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_MONITOR_INTERVAL": "100ms",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on relative metrics path",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_METRICS_PATH": "metrics",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation when readiness and liveness share a path",
			envVars: mergeEnvVars(map[string]string{
				"VALKYRIE_OBSERVABILITY_READINESS_PATH": "/healthz",
			}),
			wantErr: true,
		},
	})
}

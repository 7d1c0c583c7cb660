package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/icumesh/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Patients)
	assert.Equal(t, 5*time.Second, cfg.TickInterval.Std())
	assert.Len(t, cfg.Alerts.Rules, 4)
	assert.Equal(t, core.Roles(), cfg.Priority())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
patients: 3
tick_interval: 100ms
duration: 2s
decision_timeout: 250ms
role_priority: [nurse, physician, pharmacist]
alerts:
  cooldown: 10s
  rules:
    - name: spo2_low
      signal: spo2
      min: 90
      severity: critical
      bucket_width: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Patients)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval.Std())
	assert.Equal(t, 2*time.Second, cfg.Duration.Std())
	assert.Equal(t, []core.Role{core.RoleNurse, core.RolePhysician, core.RolePharmacist}, cfg.Priority())
	require.Len(t, cfg.Alerts.Rules, 1)
	assert.Equal(t, "spo2_low", cfg.Alerts.Rules[0].Name)
	require.NotNil(t, cfg.Alerts.Rules[0].Min)
	assert.Equal(t, 90.0, *cfg.Alerts.Rules[0].Min)

	// Untouched fields keep their defaults.
	assert.Equal(t, 256, cfg.Bus.QueueCapacity)
	assert.Equal(t, int64(1), cfg.Seed)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown signal": `
alerts:
  rules:
    - name: bad
      signal: blood_type
      min: 1
      severity: high
`,
		"unknown severity": `
alerts:
  rules:
    - name: bad
      signal: spo2
      min: 1
      severity: panic
`,
		"unknown role": `
role_priority: [janitor]
`,
		"negative patients": `
patients: -1
`,
		"malformed duration": `
tick_interval: five seconds
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateCrossFieldRules(t *testing.T) {
	t.Run("duration shorter than tick", func(t *testing.T) {
		cfg := Default()
		cfg.Duration = Duration(time.Second)
		cfg.TickInterval = Duration(5 * time.Second)
		assert.Error(t, cfg.Validate())
	})

	t.Run("rule without bounds", func(t *testing.T) {
		cfg := Default()
		cfg.Alerts.Rules = []AlertRule{{Name: "x", Signal: "spo2", Severity: "high"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("rule with inverted bounds", func(t *testing.T) {
		f := func(v float64) *float64 { return &v }
		cfg := Default()
		cfg.Alerts.Rules = []AlertRule{{Name: "x", Signal: "spo2", Min: f(100), Max: f(90), Severity: "high"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("duplicate rule name", func(t *testing.T) {
		f := func(v float64) *float64 { return &v }
		cfg := Default()
		cfg.Alerts.Rules = []AlertRule{
			{Name: "x", Signal: "spo2", Min: f(90), Severity: "high"},
			{Name: "x", Signal: "spo2", Min: f(85), Severity: "high"},
		}
		assert.Error(t, cfg.Validate())
	})
}

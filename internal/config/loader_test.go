package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
database:
  host: db.internal
  user: noticeflow
  password: secret
  db_name: notices
redis:
  enabled: true
  addr: redis:6379
source:
  timeout: 20s
messaging:
  base_url: http://gateway:8080
  instance_key: office
  token: t0k3n
rules:
  default_days: 5
  table:
    - jurisdiction: TJMG
      category: CIVIL
      days: 15
      rule_id: TJMG_CIVIL
    - jurisdiction: TRF6
      category: "*"
      days: 15
      rule_id: TRF6_ANY
calendar:
  holidays_file: /etc/noticeflow/holidays.yaml
  aliases:
    tj-mg: TJMG
inbound:
  durable_seen: true
  seen_capacity: 200
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, DefaultDBPort, cfg.Database.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 20*time.Second, cfg.Source.Timeout)
	require.Len(t, cfg.Rules.Table, 2)
	assert.Equal(t, "TRF6_ANY", cfg.Rules.Table[1].RuleID)
	assert.Equal(t, "*", cfg.Rules.Table[1].Category)
	assert.Equal(t, "TJMG", cfg.Calendar.Aliases["tj-mg"])
	assert.Equal(t, 200, cfg.Inbound.SeenCapacity)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("NOTICEFLOW_DATABASE_HOST", "override-host")
	t.Setenv("NOTICEFLOW_DISPATCH_MAX_ATTEMPTS", "5")

	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "override-host", cfg.Database.Host)
	assert.Equal(t, 5, cfg.Dispatch.MaxAttempts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "database:\n  host: db\n  user: u\nmessaging:\n  disabled: true\nlog:\n  level: loud\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NOTICEFLOW_DATABASE_USER", "envuser")
	t.Setenv("NOTICEFLOW_MESSAGING_DISABLED", "true")
	t.Setenv("NOTICEFLOW_INGESTION_BYPASS_WINDOW", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "envuser", cfg.Database.User)
	assert.True(t, cfg.Messaging.Disabled)
	assert.True(t, cfg.Ingestion.BypassWindow)
}

func TestLoadOrEnv_EmptyPathUsesEnv(t *testing.T) {
	t.Setenv("NOTICEFLOW_DATABASE_USER", "envuser")
	t.Setenv("NOTICEFLOW_MESSAGING_DISABLED", "true")

	cfg, err := LoadOrEnv("")
	require.NoError(t, err)
	assert.Equal(t, "envuser", cfg.Database.User)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "absent.yaml")) })
}

func TestWatch_InvokesCallbackOnChange(t *testing.T) {
	path := writeConfig(t, validConfigYAML)

	changed := make(chan *Config, 1)
	Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil)

	updated := validConfigYAML + "\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("watch callback not invoked")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/webhook/whatsapp", cfg.Server.WebhookPath)
	assert.Len(t, cfg.Rules.Table, len(DefaultRuleTable()))
	assert.Equal(t, 8090, cfg.Scheduler.HealthPort)
	assert.Equal(t, time.Hour, cfg.Scheduler.IngestInterval)
	assert.Equal(t, "TRT3", cfg.Calendar.Aliases["trt 03"])
}

func TestLoad_ExplicitZeroRuleSettingsAreKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  user: noticeflow
messaging:
  disabled: true
rules:
  default_days: 0
  table: []
`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Rules.DefaultDays)
	assert.Empty(t, cfg.Rules.Table)
}

func TestLoad_OmittedRuleSettingsGetDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  user: noticeflow
messaging:
  disabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultRuleDefaultDays, cfg.Rules.DefaultDays)
	assert.Equal(t, DefaultRuleTable(), cfg.Rules.Table)
	assert.Equal(t, 10*time.Minute, cfg.Dispatch.LockTTL)
}

func TestLoadFromEnv_ExplicitZeroDefaultDays(t *testing.T) {
	t.Setenv("NOTICEFLOW_DATABASE_USER", "noticeflow")
	t.Setenv("NOTICEFLOW_MESSAGING_DISABLED", "true")
	t.Setenv("NOTICEFLOW_RULES_DEFAULT_DAYS", "0")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Rules.DefaultDays)
	assert.NotEmpty(t, cfg.Rules.Table)
}

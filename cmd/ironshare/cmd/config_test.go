package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStorage() storageConfig {
	return storageConfig{
		Storage:    storageBolt,
		DataDir:    "./data",
		SessionTTL: time.Hour,
		EntryTTL:   time.Hour,
		LogLevel:   "info",
	}
}

func TestStorageConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*storageConfig)
		wantErr string
	}{
		{name: "valid bbolt", mutate: func(*storageConfig) {}},
		{name: "valid memory", mutate: func(c *storageConfig) { c.Storage = storageMemory; c.DataDir = "" }},
		{name: "valid postgres", mutate: func(c *storageConfig) { c.Storage = storagePostgres; c.PostgresDSN = "postgres://localhost/ironshare" }},
		{name: "unknown backend", mutate: func(c *storageConfig) { c.Storage = "redis" }, wantErr: `unknown storage backend "redis"`},
		{name: "bbolt without dir", mutate: func(c *storageConfig) { c.DataDir = "" }, wantErr: "--data-dir"},
		{name: "postgres without dsn", mutate: func(c *storageConfig) { c.Storage = storagePostgres }, wantErr: "--postgres-dsn"},
		{name: "zero session ttl", mutate: func(c *storageConfig) { c.SessionTTL = 0 }, wantErr: "--session-ttl"},
		{name: "negative entry ttl", mutate: func(c *storageConfig) { c.EntryTTL = -time.Second }, wantErr: "--entry-ttl"},
		{name: "bad log level", mutate: func(c *storageConfig) { c.LogLevel = "loud" }, wantErr: "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validStorage()
			tt.mutate(&c)
			err := c.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfigValidate(t *testing.T) {
	valid := serverConfig{Port: 8080, SweepInterval: time.Minute}
	assert.NoError(t, valid.validate())

	c := valid
	c.Port = 70000
	assert.ErrorContains(t, c.validate(), "--port")

	c = valid
	c.TLSCert = "cert.pem"
	assert.ErrorContains(t, c.validate(), "--tls-key")

	c = valid
	c.TLSCert, c.TLSKey = "cert.pem", "key.pem"
	assert.NoError(t, c.validate())

	c = valid
	c.SweepInterval = 0
	assert.ErrorContains(t, c.validate(), "--sweep-interval")
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("IRONSHARE_STORAGE", "memory")
	t.Setenv("IRONSHARE_PORT", "9090")
	t.Setenv("IRONSHARE_ENTRY_TTL", "30m")
	t.Setenv("IRONSHARE_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1 ,")

	assert.Equal(t, "memory", envString("IRONSHARE_STORAGE", storageBolt))
	assert.Equal(t, storageBolt, envString("IRONSHARE_UNSET", storageBolt))
	assert.Equal(t, 9090, envInt("IRONSHARE_PORT", 8080))
	assert.Equal(t, 30*time.Minute, envDuration("IRONSHARE_ENTRY_TTL", time.Hour))
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, envList("IRONSHARE_TRUSTED_PROXIES"))
	assert.Nil(t, envList("IRONSHARE_UNSET"))
}

func TestEnvDefaultsRecordMalformedValues(t *testing.T) {
	saved := envErrs
	t.Cleanup(func() { envErrs = saved })
	envErrs = nil

	t.Setenv("IRONSHARE_PORT", "eighty")
	t.Setenv("IRONSHARE_SESSION_TTL", "forever")

	assert.Equal(t, 8080, envInt("IRONSHARE_PORT", 8080))
	assert.Equal(t, time.Hour, envDuration("IRONSHARE_SESSION_TTL", time.Hour))
	require.Len(t, envErrs, 2)
	assert.ErrorContains(t, envErrs[0], "IRONSHARE_PORT")
	assert.ErrorContains(t, envErrs[1], "IRONSHARE_SESSION_TTL")
}

func TestSweepCommandWithMemoryStorage(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"sweep", "--storage", "memory", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "removed 0 sessions, 0 entries\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "ironshare "+Version+"\n", out.String())
}

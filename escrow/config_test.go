package escrow

import (
	"crypto/ed25519"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict.dev/client/protocol"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.ProgramID = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
	cfg.Payer = solana.PrivateKey(ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)))
	return cfg
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(validTestConfig()))

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_rpc_url", func(c *Config) { c.RPCURL = "  " }},
		{"relative_rpc_url", func(c *Config) { c.RPCURL = "localhost:8899" }},
		{"zero_program_id", func(c *Config) { c.ProgramID = solana.PublicKey{} }},
		{"missing_payer", func(c *Config) { c.Payer = nil }},
		{"zero_min_oracles", func(c *Config) { c.MinOracles = 0 }},
		{"zero_threshold", func(c *Config) { c.MaxDeviationPct = 0 }},
		{"threshold_above_100", func(c *Config) { c.MaxDeviationPct = 101 }},
		{"zero_poll_interval", func(c *Config) { c.ConfirmPollInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := ValidateConfig(cfg)
			assert.True(t, protocol.IsCode(err, protocol.ERR_INPUT), "got %v", err)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvRPCURL, "http://validator.test:8899")
	t.Setenv(EnvProgramID, "BPFLoaderUpgradeab1e11111111111111111111111")
	t.Setenv(EnvMinOracles, "5")
	t.Setenv(EnvMaxDeviationPct, "10.5")
	t.Setenv(EnvJournalPath, "/tmp/verdict.db")

	cfg, err := LoadEnv("")
	require.NoError(t, err)

	assert.Equal(t, "http://validator.test:8899", cfg.RPCURL)
	assert.Equal(t, "BPFLoaderUpgradeab1e11111111111111111111111", cfg.ProgramID.String())
	assert.Equal(t, 5, cfg.MinOracles)
	assert.Equal(t, 10.5, cfg.MaxDeviationPct)
	assert.Equal(t, "/tmp/verdict.db", cfg.JournalPath)
}

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv(EnvRPCURL, "")
	t.Setenv(EnvMinOracles, "")
	t.Setenv(EnvMaxDeviationPct, "")

	cfg, err := LoadEnv("")
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.RPCURL, cfg.RPCURL)
	assert.Equal(t, def.MinOracles, cfg.MinOracles)
	assert.Equal(t, def.MaxDeviationPct, cfg.MaxDeviationPct)
}

func TestLoadEnvRejectsBadValues(t *testing.T) {
	cases := []struct {
		env, val string
	}{
		{EnvProgramID, "not-base58!!"},
		{EnvMinOracles, "three"},
		{EnvMaxDeviationPct, "lots"},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			t.Setenv(tc.env, tc.val)
			_, err := LoadEnv("")
			assert.True(t, protocol.IsCode(err, protocol.ERR_INPUT), "got %v", err)
		})
	}
}

func TestLoadEnvMissingDotenvFile(t *testing.T) {
	_, err := LoadEnv("/nonexistent/verdict.env")
	assert.True(t, protocol.IsCode(err, protocol.ERR_INPUT))
}

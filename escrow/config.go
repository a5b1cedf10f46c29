package escrow

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"

	"verdict.dev/client/consensus"
	"verdict.dev/client/protocol"
)

// Config carries everything the lifecycle client needs: the ledger endpoint,
// the program under escrow, the local signing identity, and the resolution
// policy knobs.
type Config struct {
	RPCURL    string
	ProgramID solana.PublicKey
	Payer     solana.PrivateKey

	// MinOracles is the minimum number of signed submissions a resolve
	// accepts. MaxDeviationPct is the consensus threshold.
	MinOracles      int
	MaxDeviationPct float64

	// ConfirmPollInterval paces signature-status polling while waiting for
	// confirmation inside the blockhash validity window.
	ConfirmPollInterval time.Duration

	// JournalPath, when set, enables the local bbolt journal of submitted
	// operations and collected assessments.
	JournalPath string

	Log     slog.Logger
	Metrics *Metrics
}

func DefaultConfig() Config {
	return Config{
		RPCURL:              "http://127.0.0.1:8899",
		MinOracles:          3,
		MaxDeviationPct:     consensus.DefaultMaxDeviationPct,
		ConfirmPollInterval: 500 * time.Millisecond,
		Log:                 slog.Disabled,
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return protocol.Errf(protocol.ERR_INPUT, "config: rpc url is required")
	}
	u, err := url.Parse(cfg.RPCURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return protocol.Errf(protocol.ERR_INPUT, "config: invalid rpc url %q", cfg.RPCURL)
	}
	if cfg.ProgramID.IsZero() {
		return protocol.Errf(protocol.ERR_INPUT, "config: program id is required")
	}
	if len(cfg.Payer) == 0 {
		return protocol.Errf(protocol.ERR_INPUT, "config: payer identity is required")
	}
	if cfg.MinOracles <= 0 {
		return protocol.Errf(protocol.ERR_INPUT, "config: min_oracles must be > 0")
	}
	if cfg.MaxDeviationPct <= 0 || cfg.MaxDeviationPct > 100 {
		return protocol.Errf(protocol.ERR_INPUT, "config: max_deviation_pct %.2f out of (0,100]", cfg.MaxDeviationPct)
	}
	if cfg.ConfirmPollInterval <= 0 {
		return protocol.Errf(protocol.ERR_INPUT, "config: confirm_poll_interval must be > 0")
	}
	return nil
}

// Environment variables consumed by LoadEnv.
const (
	EnvRPCURL          = "VERDICT_RPC_URL"
	EnvProgramID       = "VERDICT_PROGRAM_ID"
	EnvKeypair         = "VERDICT_KEYPAIR"
	EnvMinOracles      = "VERDICT_MIN_ORACLES"
	EnvMaxDeviationPct = "VERDICT_MAX_DEVIATION_PCT"
	EnvJournalPath     = "VERDICT_JOURNAL"
)

// LoadEnv fills a Config from the process environment, optionally loading a
// dotenv file first. Values already set in the environment win over the file.
func LoadEnv(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil {
			return Config{}, protocol.Errf(protocol.ERR_INPUT, "config: load %s: %v", dotenvPath, err)
		}
	}
	cfg := DefaultConfig()

	if v := os.Getenv(EnvRPCURL); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv(EnvProgramID); v != "" {
		pid, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			return Config{}, protocol.Errf(protocol.ERR_INPUT, "config: %s: %v", EnvProgramID, err)
		}
		cfg.ProgramID = pid
	}
	if v := os.Getenv(EnvKeypair); v != "" {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(v)
		if err != nil {
			return Config{}, protocol.Errf(protocol.ERR_INPUT, "config: %s: %v", EnvKeypair, err)
		}
		cfg.Payer = key
	}
	if v := os.Getenv(EnvMinOracles); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, protocol.Errf(protocol.ERR_INPUT, "config: %s: %v", EnvMinOracles, err)
		}
		cfg.MinOracles = n
	}
	if v := os.Getenv(EnvMaxDeviationPct); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, protocol.Errf(protocol.ERR_INPUT, "config: %s: %v", EnvMaxDeviationPct, err)
		}
		cfg.MaxDeviationPct = f
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		cfg.JournalPath = v
	}
	return cfg, nil
}

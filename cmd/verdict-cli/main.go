package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"verdict.dev/client/escrow"
	"verdict.dev/client/oracle"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: verdict-cli <command> [flags]

commands:
  create    lock a payment into escrow
  dispute   mark an active escrow disputed
  resolve   collect oracle assessments and resolve a disputed escrow
  release   release an undisputed escrow after its time-lock
  status    print the on-chain escrow state
  history   print journal events and recent program submissions
  demo      run the full create -> dispute -> resolve flow`)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) < 1 {
		usage()
		return 2
	}
	cmd, rest := argv[0], argv[1:]

	var err error
	switch cmd {
	case "create":
		err = cmdCreate(rest)
	case "dispute":
		err = cmdDispute(rest)
	case "resolve":
		err = cmdResolve(rest)
	case "release":
		err = cmdRelease(rest)
	case "status":
		err = cmdStatus(rest)
	case "history":
		err = cmdHistory(rest)
	case "demo":
		err = cmdDemo(rest)
	default:
		usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "verdict-cli %s error: %v\n", cmd, err)
		return 1
	}
	return 0
}

func newLogger(level string) (slog.Logger, error) {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("VRDC")
	log.SetLevel(lvl)
	return log, nil
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (envPath, logLevel *string) {
	envPath = fs.String("env", "", "optional dotenv file with VERDICT_* settings")
	logLevel = fs.String("log", "info", "log level (debug|info|warn|error)")
	return envPath, logLevel
}

func loadClient(envPath, logLevel string) (*escrow.Client, error) {
	log, err := newLogger(logLevel)
	if err != nil {
		return nil, err
	}
	cfg, err := escrow.LoadEnv(envPath)
	if err != nil {
		return nil, err
	}
	cfg.Log = log
	return escrow.New(cfg)
}

// newTransactionID generates a random identifier short enough to serve as a
// derivation seed: a UUID with the hyphens stripped is exactly 32 bytes.
func newTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func parseScores(raw string) ([]uint8, error) {
	parts := strings.Split(raw, ",")
	out := make([]uint8, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("bad score %q: %w", p, err)
		}
		out = append(out, uint8(v))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scores given")
	}
	return out, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdCreate(argv []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	envPath, logLevel := commonFlags(fs)
	payeeStr := fs.String("payee", "", "payee public key (base58)")
	amount := fs.Uint64("amount", 0, "amount in the smallest currency unit")
	timeLock := fs.Duration("timelock", time.Hour, "dispute window duration")
	txID := fs.String("tx-id", "", "transaction identifier (default: random)")
	_ = fs.Parse(argv)

	payee, err := solana.PublicKeyFromBase58(*payeeStr)
	if err != nil {
		return fmt.Errorf("payee: %w", err)
	}
	id := *txID
	if id == "" {
		id = newTransactionID()
	}

	c, err := loadClient(*envPath, *logLevel)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.CreateEscrow(context.Background(), payee, *amount, *timeLock, id)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func cmdDispute(argv []string) error {
	fs := flag.NewFlagSet("dispute", flag.ExitOnError)
	envPath, logLevel := commonFlags(fs)
	txID := fs.String("tx-id", "", "transaction identifier")
	_ = fs.Parse(argv)

	c, err := loadClient(*envPath, *logLevel)
	if err != nil {
		return err
	}
	defer c.Close()

	sig, err := c.MarkDisputed(context.Background(), *txID)
	if err != nil {
		return err
	}
	fmt.Println(sig)
	return nil
}

func cmdResolve(argv []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	envPath, logLevel := commonFlags(fs)
	txID := fs.String("tx-id", "", "transaction identifier")
	scoresRaw := fs.String("scores", "", "comma-separated oracle scores, e.g. 65,68,70,72,74")
	_ = fs.Parse(argv)

	scores, err := parseScores(*scoresRaw)
	if err != nil {
		return err
	}

	c, err := loadClient(*envPath, *logLevel)
	if err != nil {
		return err
	}
	defer c.Close()

	// Development oracles: deterministic identities, one per score.
	reg, err := oracle.NewDevRegistry(len(scores))
	if err != nil {
		return err
	}
	assessments, err := reg.CollectAssessments(context.Background(), *txID, oracle.FixedScores(scores))
	if err != nil {
		return err
	}

	res, err := c.ResolveWithConsensus(context.Background(), *txID, assessments)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func cmdRelease(argv []string) error {
	fs := flag.NewFlagSet("release", flag.ExitOnError)
	envPath, logLevel := commonFlags(fs)
	txID := fs.String("tx-id", "", "transaction identifier")
	_ = fs.Parse(argv)

	c, err := loadClient(*envPath, *logLevel)
	if err != nil {
		return err
	}
	defer c.Close()

	sig, err := c.ReleaseFunds(context.Background(), *txID)
	if err != nil {
		return err
	}
	fmt.Println(sig)
	return nil
}

func cmdStatus(argv []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	envPath, logLevel := commonFlags(fs)
	txID := fs.String("tx-id", "", "transaction identifier")
	_ = fs.Parse(argv)

	c, err := loadClient(*envPath, *logLevel)
	if err != nil {
		return err
	}
	defer c.Close()

	acc, err := c.FetchEscrow(context.Background(), *txID)
	if err != nil {
		return err
	}
	return printJSON(acc)
}

func cmdHistory(argv []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	envPath, logLevel := commonFlags(fs)
	txID := fs.String("tx-id", "", "transaction identifier for journal events (optional)")
	limit := fs.Int("limit", 10, "number of recent program submissions to list")
	_ = fs.Parse(argv)

	c, err := loadClient(*envPath, *logLevel)
	if err != nil {
		return err
	}
	defer c.Close()

	if *txID != "" {
		events, err := c.JournalEvents(*txID)
		if err != nil {
			return err
		}
		if err := printJSON(events); err != nil {
			return err
		}
	}
	sigs, err := c.RecentSignatures(context.Background(), *limit)
	if err != nil {
		return err
	}
	return printJSON(sigs)
}

func cmdDemo(argv []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	envPath, logLevel := commonFlags(fs)
	payeeStr := fs.String("payee", "", "payee public key (base58)")
	amount := fs.Uint64("amount", 1_000_000, "amount in the smallest currency unit")
	timeLock := fs.Duration("timelock", time.Hour, "dispute window duration")
	scoresRaw := fs.String("scores", "65,68,70,72,74", "comma-separated oracle scores")
	_ = fs.Parse(argv)

	payee, err := solana.PublicKeyFromBase58(*payeeStr)
	if err != nil {
		return fmt.Errorf("payee: %w", err)
	}
	scores, err := parseScores(*scoresRaw)
	if err != nil {
		return err
	}

	c, err := loadClient(*envPath, *logLevel)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	id := newTransactionID()
	fmt.Printf("transaction id: %s\n", id)

	created, err := c.CreateEscrow(ctx, payee, *amount, *timeLock, id)
	if err != nil {
		return err
	}
	fmt.Printf("escrow %s created (sig %s)\n", created.Escrow, created.Signature)

	sig, err := c.MarkDisputed(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("disputed (sig %s)\n", sig)

	reg, err := oracle.NewDevRegistry(len(scores))
	if err != nil {
		return err
	}
	assessments, err := reg.CollectAssessments(ctx, id, oracle.FixedScores(scores))
	if err != nil {
		return err
	}

	res, err := c.ResolveWithConsensus(ctx, id, assessments)
	if err != nil {
		return err
	}
	return printJSON(res)
}

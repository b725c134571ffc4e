package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-relay/internal/adapters/interactive"
	"github.com/trebuchet-org/treb-relay/internal/adapters/telemetry"
	"github.com/trebuchet-org/treb-relay/internal/app"
	"github.com/trebuchet-org/treb-relay/internal/cli/render"
	"github.com/trebuchet-org/treb-relay/internal/config"
	domainconfig "github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/logging"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// contextKey is the type for context keys
type contextKey string

const (
	// sessionKey is the context key for the command session
	sessionKey contextKey = "session"
)

// UsageError marks invalid invocations, which exit with code 2
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// usageArgs turns argument validation failures into usage errors
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// session carries the resolved configuration and the resources opened for
// one command invocation
type session struct {
	cfg      *domainconfig.RuntimeConfig
	log      *slog.Logger
	cleanups []func()
}

func (s *session) onClose(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

func (s *session) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treb-relay",
		Short: "Gasless contract deployment through a sponsoring relay",
		Long: `treb-relay deploys compiled contracts without holding gas. Transactions are
built with a zero gas price, signed by the controller identity and submitted
to a relay service that pays for them on behalf of the sponsor.

Multi-contract plans are deployed in dependency order and then initialized.
Every run is tracked as a deployment record that can be inspected and
resumed after a failure.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return setup(cmd)
		},
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("non-interactive", false, "Disable interactive prompts")
	flags.Bool("json", false, "Output results as JSON")
	flags.StringP("network", "n", "", "Network to use (e.g., local, sepolia); defaults to local")
	flags.String("rpc-url", "", "RPC endpoint used for the chain id and nonces")
	flags.Uint64("chain-id", 0, "Chain id, required when no RPC endpoint is configured")
	flags.String("relayer-url", "", "Base URL of the gasless relay")
	flags.String("controller", "", "Controller identity (name@0xaddr, 0xaddr or name)")
	flags.String("sponsor", "", "Sponsor identity paying for the transactions")
	flags.String("signer-backend", "", "Signer backend: local, remote or external")
	flags.String("controller-key-ref", "", "Local controller key reference (env:VAR or file:path)")
	flags.String("signer-url", "", "Remote signer or external signer endpoint")
	flags.String("fee-token", "", "Token the relay charges the sponsor in")
	flags.Uint64("max-gas", 0, "Gas ceiling per transaction")
	flags.Duration("timeout", 0, "Overall command timeout (e.g. 10m)")
	flags.String("tracker", "", "Deployment tracker backend: memory, file, redis or mysql")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "deployment",
		Title: "Deployment Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "inspection",
		Title: "Inspection Commands",
	})

	for _, cmd := range []*cobra.Command{NewDeployCmd(), NewContractCmd(), NewResumeCmd()} {
		cmd.GroupID = "deployment"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{NewStatusCmd(), NewListCmd(), NewNetworksCmd()} {
		cmd.GroupID = "inspection"
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// setup resolves configuration, logging and tracing for the invoked command
func setup(cmd *cobra.Command) error {
	s, err := getSession(cmd)
	if err != nil {
		return err
	}

	projectRoot, err := config.FindProjectRoot()
	if err != nil {
		return err
	}
	v := config.SetupViper(projectRoot, cmd)

	cfg, err := config.Provider(v)
	if err != nil {
		return &UsageError{Err: err}
	}
	s.cfg = cfg
	s.log = logging.NewLogger(cfg)

	shutdown, err := telemetry.Setup(cmd.Context(), cfg.Telemetry)
	if err != nil {
		s.log.Warn("tracing disabled", "error", err)
	} else {
		s.onClose(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				s.log.Debug("failed to flush traces", "error", err)
			}
		})
	}

	if cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
		s.onClose(cancel)
		cmd.SetContext(ctx)
	}
	return nil
}

func getSession(cmd *cobra.Command) (*session, error) {
	s, ok := cmd.Context().Value(sessionKey).(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("command session not initialized")
	}
	return s, nil
}

// getApp builds the read-only app for the command
func getApp(cmd *cobra.Command) (*app.App, error) {
	s, err := getSession(cmd)
	if err != nil {
		return nil, err
	}
	a, cleanup, err := app.InitApp(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	s.onClose(cleanup)
	return a, nil
}

// getDeployApp builds the app that signs and relays
func getDeployApp(cmd *cobra.Command) (*app.DeployApp, error) {
	s, err := getSession(cmd)
	if err != nil {
		return nil, err
	}
	a, cleanup, err := app.InitDeployApp(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize deployment pipeline: %w", err)
	}
	s.onClose(cleanup)
	return a, nil
}

// confirmNetwork asks before broadcasting anywhere but the local network
func confirmNetwork(cfg *domainconfig.RuntimeConfig, action string) error {
	if cfg.NonInteractive || cfg.JSON || cfg.Network == nil || cfg.Network.Name == "local" {
		return nil
	}
	ok, err := interactive.NewSelector(false).Confirm(fmt.Sprintf("%s on %s", action, cfg.Network.Name))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("aborted")
	}
	return nil
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{}
	defer s.close()
	ctx = context.WithValue(ctx, sessionKey, s)

	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	code := exitCode(err)
	fmt.Fprintln(stderr, render.FormatError(render.FailureLine(err)))
	if code == ExitUsage {
		fmt.Fprintln(stderr, "Run 'treb-relay --help' for usage.")
	}
	return code
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	// cobra reports unknown commands and subcommands as plain errors
	if strings.HasPrefix(err.Error(), "unknown command") || strings.HasPrefix(err.Error(), "unknown flag") {
		return ExitUsage
	}
	return ExitFailure
}

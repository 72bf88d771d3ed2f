// Package cli implements the hermes command line interface. The run
// subcommand executes an arbitrary command under the retry and notification
// wrapper, so shell jobs get the same escalation path as Go callers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/hermes"
	"github.com/EvanWAppel/hermes/pkg/metrics"
	"github.com/EvanWAppel/hermes/pkg/system"
	"github.com/EvanWAppel/hermes/pkg/version"
)

// Environment variables recognized as flag fallbacks.
const (
	envFrom    = "HERMES_FROM"
	envTo      = "HERMES_TO"
	envConfig  = "HERMES_CONFIG"
	envRetries = "HERMES_RETRIES"
	envDelay   = "HERMES_DELAY"
)

type runtimeState struct {
	from         string
	to           string
	configPath   string
	templatePath string
	module       string
	retries      int
	retriesSet   bool
	delay        string
	metricsAddr  string
	debug        bool
}

// NewRootCommand builds the hermes CLI.
func NewRootCommand() *cobra.Command {
	rt := &runtimeState{}

	root := &cobra.Command{
		Use:           "hermes",
		Short:         "Retry a command and notify on terminal failure",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			if rt.from == "" {
				rt.from = os.Getenv(envFrom)
			}
			if rt.to == "" {
				rt.to = os.Getenv(envTo)
			}
			if rt.configPath == "" {
				rt.configPath = os.Getenv(envConfig)
			}
			rt.retriesSet = cmd.Flags().Changed("retries")
			if !rt.retriesSet {
				if v := os.Getenv(envRetries); v != "" {
					n, err := strconv.Atoi(v)
					if err != nil || n < 0 {
						return fmt.Errorf("invalid %s %q", envRetries, v)
					}
					rt.retries = n
					rt.retriesSet = true
				}
			}
			if !cmd.Flags().Changed("delay") {
				if v := os.Getenv(envDelay); v != "" {
					rt.delay = v
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.from, "from", "", "Sender address for the mail channel")
	root.PersistentFlags().StringVar(&rt.to, "to", "", "Recipient address for the mail channel")
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to a hermes config file")
	root.PersistentFlags().StringVar(&rt.templatePath, "template", "", "Path to a report body template")
	root.PersistentFlags().StringVar(&rt.module, "module", "", "Module name for the report subject (defaults to the command name)")
	root.PersistentFlags().IntVar(&rt.retries, "retries", hermes.DefaultPolicy.MaxRetries, "Retries after the first failed attempt")
	root.PersistentFlags().StringVar(&rt.delay, "delay", "", "Delay between attempts, in Go duration syntax (default 60s)")
	root.PersistentFlags().StringVar(&rt.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs (e.g. :8081)")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newRunCommand(rt),
		newVersionCommand(),
	)

	return root
}

func newRunCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "run -- command [args...]",
		Short: "Run a command under retry and failure notification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := system.NewLogger(rt.debug)

			notifier, err := rt.buildNotifier(args[0], logger)
			if err != nil {
				return err
			}
			defer func() { _ = notifier.Close() }()

			if rt.metricsAddr != "" {
				_, shutdown, err := serveMetrics(rt.metricsAddr, logger)
				if err != nil {
					return err
				}
				defer shutdown()
			}

			return notifier.Run(cmd.Context(), func(ctx context.Context) error {
				proc := exec.CommandContext(ctx, args[0], args[1:]...)
				proc.Stdout = cmd.OutOrStdout()
				proc.Stderr = cmd.ErrOrStderr()
				proc.Stdin = cmd.InOrStdin()
				return proc.Run()
			})
		},
	}
}

// buildNotifier assembles channel configuration and retry policy from the
// config file, flags and environment. Flags win over the file; the file wins
// over built-in defaults.
func (rt *runtimeState) buildNotifier(command string, logger *zap.SugaredLogger) (*hermes.Notifier, error) {
	var fileCfg *config.FileConfig
	var channels config.Channels
	templatePath := rt.templatePath

	if rt.configPath != "" {
		loaded, err := config.Load(rt.configPath)
		if err != nil {
			return nil, err
		}
		fileCfg = &loaded
		channels = loaded.Channels
		if templatePath == "" {
			templatePath = loaded.Template
		}
		if rt.from != "" {
			channels.Mail.Origin = rt.from
		}
		if rt.to != "" {
			channels.Mail.Destination = rt.to
		}
	} else {
		if rt.from == "" || rt.to == "" {
			return nil, fmt.Errorf("--from and --to are required without a config file")
		}
		channels = config.FromEnv(rt.from, rt.to)
	}

	policy, err := rt.resolvePolicy(fileCfg)
	if err != nil {
		return nil, err
	}

	module := rt.module
	if module == "" {
		module = filepath.Base(command)
	}

	opts := []hermes.Option{
		hermes.WithLogger(logger),
		hermes.WithPolicy(policy),
		hermes.WithModule(module),
	}
	if templatePath != "" {
		opts = append(opts, hermes.WithTemplateFile(templatePath))
	}

	return hermes.New(channels, opts...), nil
}

// resolvePolicy layers the retry policy: built-in defaults, then the config
// file, then explicitly set flags. A --retries flag the user actually passed
// wins even when it equals the default.
func (rt *runtimeState) resolvePolicy(fileCfg *config.FileConfig) (hermes.Policy, error) {
	policy := hermes.DefaultPolicy

	if fileCfg != nil {
		policy.MaxRetries = fileCfg.ParsedRetries()
		if delay, err := fileCfg.ParsedDelay(); err == nil {
			policy.Delay = delay
		}
	}

	if rt.retriesSet {
		policy.MaxRetries = rt.retries
	}
	if rt.delay != "" {
		delay, err := time.ParseDuration(rt.delay)
		if err != nil {
			return policy, fmt.Errorf("invalid --delay %q: %w", rt.delay, err)
		}
		policy.Delay = delay
	}

	return policy, nil
}

// serveMetrics exposes the Prometheus registry on /metrics for the lifetime
// of the wrapped command. The bound address is returned so callers binding
// port 0 can discover it.
func serveMetrics(addr string, logger *zap.SugaredLogger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("binding metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 3 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnw("Metrics server stopped", "error", err.Error())
		}
	}()
	logger.Infow("Serving metrics", "addr", ln.Addr().String())

	return ln.Addr().String(), func() { _ = srv.Shutdown(context.Background()) }, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "hermes %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
		},
	}
}

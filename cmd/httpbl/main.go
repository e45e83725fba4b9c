package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/haukened/httpbl/internal/httpbl/common/log"
	"github.com/haukened/httpbl/internal/httpbl/config"
	"github.com/haukened/httpbl/internal/httpbl/domain"
	"github.com/haukened/httpbl/internal/httpbl/gateways/transport"
	"github.com/haukened/httpbl/internal/httpbl/services/lookup"
	"github.com/haukened/httpbl/internal/httpbl/services/policy"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "httpbl"

	// exitDenied is returned by "allow" when at least one address is denied.
	exitDenied = 2
)

var errDenied = errors.New("one or more addresses denied")

// Swappable for tests.
var (
	loadConfig  = config.Load
	newResolver = transport.NewResolver
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Application holds the wired lookup and policy components.
type Application struct {
	config    *config.AppConfig
	checker   *lookup.Checker
	evaluator *policy.Evaluator
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errDenied):
		return exitDenied
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// cli carries the application built by the root command to its subcommands.
type cli struct {
	app *Application
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   appName,
		Short: "Project Honey Pot HTTP:BL lookups",
		Long: `Project Honey Pot HTTP:BL lookups.

Queries the HTTP:BL DNS service for IPv4 addresses and reports
how each one is listed, or whether it passes the configured
threat and type thresholds.

Configuration is read from HTTPBL_* environment variables. An
access key must be provided in HTTPBL_SERVICE_KEY.
`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			c.app, err = buildApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}
			log.Debug(c.app.startupFields(), "Starting "+appName)
			return nil
		},
	}
	root.AddCommand(c.newCheckCmd(), c.newAllowCmd())
	return root
}

func (c *cli) newCheckCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "check <ip>...",
		Short:   "Show how each address is listed",
		Example: `  httpbl check 127.1.1.1 203.0.113.7`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := forEach(cmd.Context(), args, c.app.checker.Check)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, r := range results {
				writeResult(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func (c *cli) newAllowCmd() *cobra.Command {
	var threat, typeSeverity int
	cmd := &cobra.Command{
		Use:   "allow <ip>...",
		Short: "Decide whether each address should be allowed",
		Long: `Decide whether each address should be allowed.

An address is denied when its threat score reaches the threat
threshold and its type bitmask reaches the type threshold. The
command exits with status 2 when any address is denied.
`,
		Example: `  httpbl allow --threat 40 198.51.100.23`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("threat") || cmd.Flags().Changed("type-severity") {
				t := c.app.evaluator.Thresholds()
				if cmd.Flags().Changed("threat") {
					t.Threat = threat
				}
				if cmd.Flags().Changed("type-severity") {
					t.TypeSeverity = typeSeverity
				}
				c.app.evaluator.SetThresholds(t)
			}

			allowed := forEach(cmd.Context(), args, c.app.evaluator.Allow)
			denied := false
			for i, ok := range allowed {
				verdict := "allow"
				if !ok {
					verdict = "deny"
					denied = true
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[i], verdict)
			}
			if denied {
				return errDenied
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&threat, "threat", policy.DefaultThresholds.Threat, "minimum threat score that denies")
	cmd.Flags().IntVar(&typeSeverity, "type-severity", policy.DefaultThresholds.TypeSeverity, "minimum type bitmask that denies")
	return cmd
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	resolver, err := newResolver(transport.TransportType(cfg.Resolver.Transport), transport.Options{
		Servers:  cfg.Resolver.Servers,
		Timeout:  cfg.Resolver.Timeout,
		Parallel: cfg.Resolver.Parallel,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	checker, err := lookup.NewChecker(lookup.Options{
		Resolver: resolver,
		APIKey:   cfg.Service.Key,
		Domain:   cfg.Service.Domain,
		Timeout:  cfg.Resolver.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checker: %w", err)
	}

	evaluator, err := policy.NewEvaluator(policy.Options{
		Checker: checker,
		Thresholds: &policy.Thresholds{
			Threat:       cfg.Policy.Threat,
			TypeSeverity: cfg.Policy.TypeSeverity,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	return &Application{
		config:    cfg,
		checker:   checker,
		evaluator: evaluator,
	}, nil
}

// startupFields describes the running configuration without the access key.
func (app *Application) startupFields() map[string]any {
	cfg := app.config
	return map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.Log.Level,
		"domain":        cfg.Service.Domain,
		"transport":     cfg.Resolver.Transport,
		"servers":       cfg.Resolver.Servers,
		"timeout":       cfg.Resolver.Timeout.String(),
		"parallel":      cfg.Resolver.Parallel,
		"threat":        cfg.Policy.Threat,
		"type_severity": cfg.Policy.TypeSeverity,
	}
}

// forEach runs fn for every ip concurrently and returns the results in
// argument order.
func forEach[T any](ctx context.Context, ips []string, fn func(context.Context, string) T) []T {
	out := make([]T, len(ips))
	var g errgroup.Group
	for i, ip := range ips {
		g.Go(func() error {
			out[i] = fn(ctx, ip)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// writeResult prints one tab separated line for r.
func writeResult(w io.Writer, r domain.LookupResult) {
	switch {
	case r.IsSearchEngine():
		fmt.Fprintf(w, "%s\tsearch engine\t%s (%d)\n", r.IP, r.SearchEngineName, *r.SearchEngineCode)
	case r.IsListed():
		fmt.Fprintf(w, "%s\tlisted\tthreat=%d days=%d type=%d\t%s\n",
			r.IP, r.ThreatScore, *r.DaysSinceActivity, r.TypeBitmask, strings.Join(r.Labels(), ", "))
	default:
		fmt.Fprintf(w, "%s\tnot blacklisted\n", r.IP)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/pryvlink/internal/cliconfig"
	"github.com/bft-labs/pryvlink/pkg/log"
	"github.com/bft-labs/pryvlink/pkg/pryvlink"
)

const helpDescription = `
Talk to a Pryv-style data-collection API from the command line.

Highlights:
  - Sends long call sequences as chunked batches with progress reporting.
  - Streams large event queries as NDJSON without buffering them.
  - Uploads attachments and high-frequency series points.
  - Follows an account incrementally, resuming from a persisted cursor.

Configure via $HOME/.pryvlink/config.toml, PRYV_* environment variables or flags.
`

var exampleUsage = strings.TrimSpace(`
  pryvlink --api-endpoint https://{token}@alice.pryv.me/ access-info
  pryvlink api calls.json --chunk-size 500
  pryvlink events streams[]=diary limit=100000 > events.ndjson
  pryvlink follow streams[]=diary --poll 1m
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries what every subcommand needs once configuration is loaded.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
	conn    *pryvlink.Connection
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	c.log = cliconfig.Logger(c.cfg.LogLevel)

	root := &cobra.Command{
		Use:           "pryvlink",
		Short:         "Client for Pryv-style data-collection APIs",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	// Flags
	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.pryvlink/config.toml)")
	f.StringVar(&c.cfg.APIEndpoint, "api-endpoint", c.cfg.APIEndpoint, "API endpoint, optionally with the token as user info")
	f.StringVar(&c.cfg.Token, "token", c.cfg.Token, "access token (overrides one embedded in the endpoint)")
	f.IntVar(&c.cfg.ChunkSize, "chunk-size", c.cfg.ChunkSize, "maximum calls per batch request")
	f.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "HTTP timeout")
	f.Float64Var(&c.cfg.RateLimit, "rate-limit", c.cfg.RateLimit, "maximum requests per second (0 = unlimited)")
	f.IntVar(&c.cfg.RateBurst, "rate-burst", c.cfg.RateBurst, "request burst allowed by the rate limiter")
	f.IntVar(&c.cfg.MaxRetries, "max-retries", c.cfg.MaxRetries, "retries for network errors, 429 and 5xx answers")
	f.BoolVar(&c.cfg.DisableStreaming, "no-stream", c.cfg.DisableStreaming, "buffer responses fully before decoding")
	f.BoolVar(&c.cfg.DisableGzip, "no-gzip", c.cfg.DisableGzip, "do not request compressed responses")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		c.apiCmd(),
		c.getCmd(),
		c.eventsCmd(),
		c.attachCmd(),
		c.pointsCmd(),
		c.accessInfoCmd(),
		c.followCmd(),
	)

	if err := root.Execute(); err != nil {
		c.log.Error().Err(err).Msg("pryvlink")
		os.Exit(1)
	}
}

// setup loads configuration (defaults < file < env < flags) and connects.
func (c *cli) setup(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	// Build set of changed flags
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
		c.cfgPath = cfgFile
	}

	// Environment overrides file config but not flags
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	// Validate and set derived defaults
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.log = cliconfig.Logger(c.cfg.LogLevel)
	c.log.Debug().Interface("config", c.cfg.Masked()).Msg("configuration")

	conn, err := pryvlink.New(c.cfg.Library(),
		pryvlink.WithLogger(log.NewZerolog(c.log)),
		pryvlink.WithEventHandler(&logHandler{log: c.log}),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.conn = conn
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func (c *cli) signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			c.log.Info().Msg("received signal, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// logHandler logs connection notifications.
type logHandler struct {
	pryvlink.BaseEventHandler
	log zerolog.Logger
}

func (h *logHandler) OnAuthStateChange(e pryvlink.AuthStateChangeEvent) {
	h.log.Debug().Str("from", e.Previous.String()).Str("to", e.Current.String()).Msg("auth state")
}

func (h *logHandler) OnSyncError(e pryvlink.SyncErrorEvent) {
	h.log.Warn().Err(e.Error).Msg("sync pass failed, retrying")
}

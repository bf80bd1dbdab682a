package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/pryvlink/internal/cliconfig"
	"github.com/bft-labs/pryvlink/pkg/log"
	"github.com/bft-labs/pryvlink/pkg/pryvlink"
)

func (c *cli) apiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api [calls.json|-]",
		Short: "Send a JSON array of method calls as chunked batches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args)
			if err != nil {
				return err
			}
			defer closeIn()

			calls, err := readCalls(in)
			if err != nil {
				return err
			}

			ctx, cancel := c.signalContext()
			defer cancel()

			results, err := c.conn.API(ctx, calls, func(percent int) {
				c.log.Info().Int("percent", percent).Msg("progress")
			})
			if err != nil {
				return err
			}
			for i, res := range results {
				if apiErr := res.Err(); apiErr != nil {
					c.log.Warn().Int("call", i).Str("method", calls[i].Method).Str("error", apiErr.Error()).Msg("call failed")
				}
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path> [key=value ...]",
		Short: "GET a resource relative to the API endpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(args[1:])
			if err != nil {
				return err
			}
			ctx, cancel := c.signalContext()
			defer cancel()

			res, err := c.conn.Get(ctx, args[0], query)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events [key=value ...]",
		Short: "Stream an events query as NDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(args)
			if err != nil {
				return err
			}
			ctx, cancel := c.signalContext()
			defer cancel()

			enc := json.NewEncoder(cmd.OutOrStdout())
			start := time.Now()
			summary, err := c.conn.GetEventsStreamed(ctx, query, func(ev pryvlink.Event) error {
				return enc.Encode(ev)
			})
			if err != nil {
				return err
			}
			c.log.Info().
				Int("events", summary.EventsCount).
				Int("deletions", summary.DeletionsCount).
				Str("api_version", summary.Meta.APIVersion).
				Dur("duration", time.Since(start)).
				Msg("stream complete")
			return nil
		},
	}
}

func (c *cli) attachCmd() *cobra.Command {
	var streamID, eventType, content string
	cmd := &cobra.Command{
		Use:   "attach <file>",
		Short: "Create an event with a file attached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event := map[string]any{
				"streamIds": []string{streamID},
				"type":      eventType,
			}
			if content != "" {
				event["content"] = content
			}
			ctx, cancel := c.signalContext()
			defer cancel()

			res, err := c.conn.CreateEventWithFile(ctx, event, args[0])
			if err != nil {
				return err
			}
			if apiErr := res.Err(); apiErr != nil {
				return apiErr
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&streamID, "stream-id", "", "stream of the new event")
	cmd.Flags().StringVar(&eventType, "type", "file/attached", "type of the new event")
	cmd.Flags().StringVar(&content, "content", "", "optional event content")
	_ = cmd.MarkFlagRequired("stream-id")
	return cmd
}

func (c *cli) pointsCmd() *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "points <event-id> [points.json|-]",
		Short: "Append a JSON array of points to a high-frequency series event",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args[1:])
			if err != nil {
				return err
			}
			defer closeIn()

			var points [][]any
			if err := json.NewDecoder(in).Decode(&points); err != nil {
				return fmt.Errorf("decode points: %w", err)
			}
			ctx, cancel := c.signalContext()
			defer cancel()

			res, err := c.conn.AddPointsToHFEvent(ctx, args[0], fields, points)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", []string{"deltaTime", "value"}, "field names, one per point value")
	return cmd
}

func (c *cli) accessInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "access-info",
		Short: "Describe the access behind the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.signalContext()
			defer cancel()

			res, err := c.conn.AccessInfo(ctx)
			if err != nil {
				return err
			}
			c.log.Info().
				Str("state", c.conn.AuthState().String()).
				Float64("delta_time", c.conn.DeltaTime()).
				Msg("authorized")
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func (c *cli) followCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow [key=value ...]",
		Short: "Stream matching events, then keep polling for changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(args)
			if err != nil {
				return err
			}
			ctx, cancel := c.signalContext()
			defer cancel()

			if c.cfgPath != "" && !c.cfg.Once {
				go c.watchConfig(ctx)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = c.conn.Follow(ctx, query, func(ev pryvlink.Event) error {
				return enc.Encode(ev)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&c.cfg.StateDir, "state-dir", c.cfg.StateDir, "directory holding the sync cursor (default: $HOME/.pryvlink/state)")
	cmd.Flags().DurationVar(&c.cfg.PollInterval, "poll", c.cfg.PollInterval, "interval between sync passes")
	cmd.Flags().BoolVar(&c.cfg.Once, "once", c.cfg.Once, "run a single sync pass and exit")
	return cmd
}

// watchConfig switches the connection to a new endpoint or token when the
// config file changes.
func (c *cli) watchConfig(ctx context.Context) {
	err := cliconfig.WatchFile(ctx, c.cfgPath, cliconfig.DefaultDebounce, log.NewZerolog(c.log), func() {
		fc, err := cliconfig.LoadFileConfig(c.cfgPath)
		if err != nil {
			c.log.Warn().Err(err).Msg("reload config")
			return
		}
		if fc.APIEndpoint == "" {
			return
		}
		token := fc.Token
		if t := os.Getenv("PRYV_TOKEN"); t != "" {
			token = t
		}
		if err := c.conn.SetAPIEndpoint(fc.APIEndpoint, token); err != nil {
			c.log.Warn().Err(err).Msg("reload config")
			return
		}
		c.log.Info().Str("config", c.cfgPath).Msg("configuration reloaded")
	})
	if err != nil && ctx.Err() == nil {
		c.log.Warn().Err(err).Msg("config watcher stopped")
	}
}

// openInput opens the file named by args[0], or stdin for "-" or no argument.
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// readCalls decodes a JSON array of {"method", "params"} objects.
func readCalls(r io.Reader) ([]pryvlink.Call, error) {
	var calls []pryvlink.Call
	if err := json.NewDecoder(r).Decode(&calls); err != nil {
		return nil, fmt.Errorf("decode calls: %w", err)
	}
	for i, call := range calls {
		if call.Method == "" {
			return nil, fmt.Errorf("call %d has no method", i)
		}
	}
	return calls, nil
}

// parseQuery turns key=value arguments into query parameters. Repeated keys
// accumulate, so streams[]=a streams[]=b selects both streams.
func parseQuery(args []string) (url.Values, error) {
	query := url.Values{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid query parameter %q, want key=value", arg)
		}
		query[k] = append(query[k], v)
	}
	return query, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/client"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/gateway"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
)

const defaultGatewayURL = "http://localhost:3001"

type remoteOptions struct {
	url     string
	timeout time.Duration
}

func (o *remoteOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.url, "url", defaultGatewayURL, "Gateway base URL")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 10*time.Second, "Per-request timeout")
}

// connect builds a client for the gateway and probes it once, so requests
// made while it is down take the offline path.
func (o *remoteOptions) connect(cmd *cobra.Command) (*client.Client, *client.Monitor, error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger := observe.NewLoggerWithWriter(level, cmd.ErrOrStderr())

	statusSchema, err := client.NewSchemaValidator[gateway.StatusResponse](true)
	if err != nil {
		return nil, nil, err
	}

	conn := client.NewConnectivity(true)
	c, err := client.New(client.Config{
		BaseURL:      o.url,
		Timeout:      o.timeout,
		Connectivity: conn,
		Schemas:      map[string]*client.SchemaValidator{gateway.StatusPath: statusSchema},
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}

	monitor := client.NewMonitor(conn, client.MonitorConfig{
		BaseURL:      o.url,
		ProbeTimeout: o.timeout,
		Logger:       logger,
	})
	if err := monitor.Probe(cmd.Context()); err != nil {
		conn.SetOnline(false)
	}
	return c, monitor, nil
}

func newStatusCmd() *cobra.Command {
	var opts remoteOptions
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show gateway cache, rate limit and circuit breaker status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := opts.connect(cmd)
			if err != nil {
				return err
			}

			resp, err := c.Get(cmd.Context(), gateway.StatusPath)
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd, resp.Body)
		},
	}
	opts.bind(cmd)
	return cmd
}

func newInvalidateCmd() *cobra.Command {
	var (
		opts  remoteOptions
		token string
		wait  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached response for a trust token",
		Long: `Drop every cached response for a trust token. If the gateway is
unreachable the request is queued; with --wait the command keeps probing
and sends it once the gateway is back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, monitor, err := opts.connect(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			resp, err := c.Post(ctx, gateway.InvalidateTokenPath, map[string]string{"trustToken": token})
			switch {
			case err == nil:
				return printJSON(cmd, resp.Body)
			case errors.Is(err, client.ErrQueued) && wait > 0:
				return awaitReplay(ctx, cmd, c, monitor, wait)
			default:
				return describe(err)
			}
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&token, "token", "", "Trust token to invalidate")
	cmd.Flags().DurationVar(&wait, "wait", 0, "How long to wait for an unreachable gateway")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// awaitReplay runs the monitor and the client's queue drain until the
// offline queue is empty or wait elapses.
func awaitReplay(ctx context.Context, cmd *cobra.Command, c *client.Client, monitor *client.Monitor, wait time.Duration) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "gateway unreachable, waiting up to %s\n", wait)

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	go monitor.Run(ctx)
	go c.Run(ctx)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for c.Queue().Len() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("invalidation still queued: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "queued invalidation sent")
	return nil
}

// describe turns a client failure into a message for the terminal.
func describe(err error) error {
	var te *client.TransportError
	switch {
	case errors.As(err, &te):
		return fmt.Errorf("%s: %w", te.UserMessage(), err)
	case errors.Is(err, client.ErrOffline):
		return errors.New("gateway is unreachable")
	case errors.Is(err, client.ErrQueued):
		return errors.New("gateway is unreachable, request not sent")
	case errors.Is(err, client.ErrCircuitOpen):
		return errors.New("gateway is failing, try again later")
	default:
		return err
	}
}

func printJSON(cmd *cobra.Command, body []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(cmd.OutOrStdout())
	return err
}

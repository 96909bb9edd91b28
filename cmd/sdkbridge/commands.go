package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"sdkbridge/internal/app"
	"sdkbridge/internal/buildinfo"
	"sdkbridge/internal/config"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sdkbridge",
		Short:         "App-events and deep-link bridge daemon",
		Version:       buildinfo.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newCallCommand(), newVersionCommand(), newConfigCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var (
		cfgPath     string
		stopTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfgPath, stopTimeout)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config (yaml or json)")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 15*time.Second, "upper bound for graceful shutdown")
	return cmd
}

func runServe(ctx context.Context, cfgPath string, stopTimeout time.Duration) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopStartFailed)
		return fmt.Errorf("start: %w", err)
	}
	// No-op outside systemd.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatal
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	stopErr := a.Stop(stopCtx, reason)
	if reason == app.StopFatal {
		return errors.Join(a.Err(), stopErr)
	}
	return stopErr
}

func newCallCommand() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "call <method> [json-arguments]",
		Short: "Invoke a bridge method on a running daemon",
		Example: `  sdkbridge call getPlatformVersion
  sdkbridge call logSearch '{"contentType":"product","contentData":"shoes","contentId":"q1","searchString":"red shoes","success":true}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			if len(args) == 2 {
				body = []byte(args[1])
				if !json.Valid(body) {
					return fmt.Errorf("arguments are not valid JSON")
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return callMethod(ctx, cmd.OutOrStdout(), addr, args[0], body)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "daemon address (host:port or URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func callMethod(ctx context.Context, out io.Writer, addr, method string, body []byte) error {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/methods/"+url.PathEscape(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", resp.Status, err)
	}
	if env.Error != nil {
		msg := env.Error.Code + ": " + env.Error.Message
		if env.Error.Details != "" {
			msg += " (" + env.Error.Details + ")"
		}
		return errors.New(msg)
	}
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, env.Data, "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, pretty.String())
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "sdkbridge %s (%s)\n", buildinfo.Version(), buildinfo.Platform())
			return err
		},
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Config utilities"}
	var cfgPath string
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate a config file and print it with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewManager(cfgPath).Load()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), config.Redacted(cfg))
			return err
		},
	}
	check.Flags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config (yaml or json)")
	cmd.AddCommand(check)
	return cmd
}

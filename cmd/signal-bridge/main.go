// Package main is the entrypoint for signal-bridge.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/morezero/signal-bridge/internal/config"
	"github.com/morezero/signal-bridge/internal/server"
	"github.com/morezero/signal-bridge/pkg/commsutil"
	"github.com/morezero/signal-bridge/pkg/dispatcher"
	"github.com/morezero/signal-bridge/pkg/manifest"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "signal-bridge",
		Short: "Expose device signal strength over a NATS method channel",
		Long: `signal-bridge answers signal strength queries on the signal_strength channel.

Environment: COMMS_URL, SIGNAL_SUBJECT, PLATFORM_PROVIDER (dbus|static),
PLATFORM_FIXTURE_FILE, WIFI_INTERFACE, HTTP_PORT, LOG_LEVEL, LOG_FILE.
Send SIGHUP to reload PLATFORM_FIXTURE_FILE when running the static provider.`,
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return server.Run()
		},
	}
	root.AddCommand(newServeCmd(), newQueryCmd(), newManifestCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge (default)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return server.Run()
		},
	}
}

func newQueryCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:       "query <method>",
		Short:     "Call one method on a running bridge and print the result",
		Args:      cobra.ExactArgs(1),
		ValidArgs: dispatcher.Methods(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.ValidateForQuery(); err != nil {
				return err
			}
			m, err := manifest.Load(cfg.ManifestFile)
			if err != nil {
				return err
			}
			if !force && !m.HasMethod(args[0]) {
				return fmt.Errorf("method %q is not listed in the manifest (use --force to send it anyway)", args[0])
			}

			nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-query")
			if err != nil {
				return err
			}
			defer nc.Close()

			payload, err := commsutil.EncodePayload(dispatcher.MethodCall{
				ID:     uuid.NewString(),
				Method: args[0],
			})
			if err != nil {
				return err
			}

			msg, err := nc.Request(server.ChannelSubject(cfg, m), payload, cfg.RequestTimeout)
			if err != nil {
				return fmt.Errorf("request %s: %w", args[0], err)
			}

			var resp dispatcher.MethodResult
			if err := commsutil.DecodePayload(msg.Data, &resp); err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Send a method the manifest does not list")
	return cmd
}

func newManifestCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the channel manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			local, err := manifest.Load(cfg.ManifestFile)
			if err != nil {
				return err
			}
			subject := server.ChannelSubject(cfg, local)
			if !remote {
				return printJSON(cmd, local.WithSubject(subject))
			}

			if err := cfg.ValidateForQuery(); err != nil {
				return err
			}
			nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-query")
			if err != nil {
				return err
			}
			defer nc.Close()

			msg, err := nc.Request(commsutil.BuildManifestSubject(subject), nil, cfg.RequestTimeout)
			if err != nil {
				return fmt.Errorf("request manifest: %w", err)
			}
			var m manifest.Manifest
			if err := commsutil.DecodePayload(msg.Data, &m); err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the manifest from a running bridge")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

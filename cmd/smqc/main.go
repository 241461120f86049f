// Command smqc is a thin command-line wrapper over package smq: it builds
// one Client per invocation, performs a single operation (or, for watch,
// loops until interrupted), and formats the result with internal/output.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oriys/smq"
	"github.com/oriys/smq/internal/config"
	"github.com/oriys/smq/internal/logging"
	"github.com/oriys/smq/internal/metrics"
	"github.com/oriys/smq/internal/observability"
	"github.com/oriys/smq/internal/output"
)

var (
	configFile string
	host       string
	port       int
	name       string
	timeoutMS  int
	outputFmt  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smqc",
		Short: "smqc - Simple Message Queue client",
		Long:  "A command-line client for publishing to and retrieving from a Simple Message Queue broker",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, flags override)")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Broker host, scheme included (e.g. http://localhost)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Broker port")
	rootCmd.PersistentFlags().StringVar(&name, "name", "", "Mailbox name used for subscribe/unsubscribe/retrieve")
	rootCmd.PersistentFlags().IntVar(&timeoutMS, "timeout-ms", 0, "Per-call timeout in milliseconds")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "output", "table", "Output format: table, wide, json, yaml")

	rootCmd.AddCommand(
		publishCmd(),
		subscribeCmd(),
		unsubscribeCmd(),
		retrieveCmd(),
		watchCmd(),
		statusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers config file, environment, then command-line flag
// overrides, in that order, mirroring the daemon command's own precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)

	if cmd.Flags().Changed("host") {
		cfg.Client.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Client.Port = port
	}
	if cmd.Flags().Changed("name") {
		cfg.Client.Name = name
	}
	if cmd.Flags().Changed("timeout-ms") {
		cfg.Client.TimeoutMS = timeoutMS
	}

	return cfg, nil
}

// buildClient initializes the ambient stack (logging, tracing, metrics) from
// cfg and returns a live Client. Callers must Shutdown then Delete it.
func buildClient(cmd *cobra.Command) (*smq.Client, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logging.SetLevelFromString(cfg.Observability.Logging.Level)
	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

	if err := observability.Init(context.Background(), observability.Config{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    cfg.Observability.Tracing.Exporter,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: cfg.Observability.Tracing.ServiceName,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	}); err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	if cfg.Observability.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
	}

	if cfg.Client.Name == "" {
		cfg.Client.Name = "smqc-" + uuid.NewString()[:8]
	}

	c, err := smq.NewWithConfig(smq.Config{
		Name:    cfg.Client.Name,
		Host:    cfg.Client.Host,
		Port:    cfg.Client.Port,
		Timeout: cfg.Client.Timeout(),
		Retry: smq.RetryConfig{
			BackoffEnabled: cfg.Retry.BackoffEnabled,
			BaseMS:         cfg.Retry.BaseMS,
			MaxMS:          cfg.Retry.MaxMS,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func closeClient(c *smq.Client) {
	c.Shutdown()
	c.Delete()
	observability.Shutdown(context.Background())
}

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <topic> <body>",
		Short: "Publish a message to a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := buildClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(c)

			topic, body := args[0], args[1]
			c.Publish(topic, []byte(body))

			p := output.NewPrinter(output.ParseFormat(outputFmt))
			return p.PrintPublishRows([]output.PublishRow{{
				Operation:  "publish",
				Topic:      topic,
				BodySize:   len(body),
				QueuedTime: nowRFC3339(),
			}})
		},
	}
	return cmd
}

func subscribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe <topic>",
		Short: "Subscribe this client's mailbox to a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := buildClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(c)

			topic := args[0]
			c.Subscribe(topic)

			p := output.NewPrinter(output.ParseFormat(outputFmt))
			return p.PrintPublishRows([]output.PublishRow{{
				Operation:  "subscribe",
				Topic:      topic,
				QueuedTime: nowRFC3339(),
			}})
		},
	}
	return cmd
}

func unsubscribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unsubscribe <topic>",
		Short: "Unsubscribe this client's mailbox from a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := buildClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(c)

			topic := args[0]
			c.Unsubscribe(topic)

			p := output.NewPrinter(output.ParseFormat(outputFmt))
			return p.PrintPublishRows([]output.PublishRow{{
				Operation:  "unsubscribe",
				Topic:      topic,
				QueuedTime: nowRFC3339(),
			}})
		},
	}
	return cmd
}

func retrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve one message, waiting up to the configured timeout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := buildClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(c)

			p := output.NewPrinter(output.ParseFormat(outputFmt))
			body, ok := c.Retrieve()
			if !ok {
				p.Warning("no message available")
				return nil
			}
			return p.PrintMessage(output.MessageRow{
				BodyText:  string(body),
				Retrieved: nowRFC3339(),
			})
		},
	}
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Retrieve messages in a loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := buildClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(c)

			p := output.NewPrinter(output.ParseFormat(outputFmt))
			p.Info("watching for messages (Ctrl+C to stop)")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for c.Running() {
					body, ok := c.Retrieve()
					if !ok {
						continue
					}
					p.PrintMessage(output.MessageRow{
						BodyText:  string(body),
						Retrieved: nowRFC3339(),
					})
				}
			}()

			select {
			case <-sigCh:
				p.Info("shutdown signal received")
			case <-done:
			}
			return nil
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show this client's running state and queue depths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := buildClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(c)

			// Give the workers a moment to settle before reporting depths.
			time.Sleep(50 * time.Millisecond)

			p := output.NewPrinter(output.ParseFormat(outputFmt))
			return p.PrintClientStatus(output.ClientStatus{
				Name:          cfg.Client.Name,
				Server:        fmt.Sprintf("%s:%d", cfg.Client.Host, cfg.Client.Port),
				Running:       c.Running(),
				OutgoingDepth: c.OutgoingDepth(),
				IncomingDepth: c.IncomingDepth(),
			})
		},
	}
	return cmd
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

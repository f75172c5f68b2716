// Command syncagent keeps a local queue of changes made while the server is
// unreachable and replays them once it is back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gooms-backend/internal/logger"
	"gooms-backend/internal/offline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg   agentConfig
	log   *zap.Logger
	store *offline.Store
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		a          app
	)

	cmd := &cobra.Command{
		Use:           "syncagent",
		Short:         "Offline action queue for the gooms backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Output: "stderr"})
			if err != nil {
				return err
			}
			store, err := offline.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			a = app{cfg: cfg, log: log, store: store}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = a.log.Sync()
			return a.store.Close()
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "syncagent.yaml", "Config file path (YAML)")

	cmd.AddCommand(
		enqueueCmd(&a),
		listCmd(&a),
		statsCmd(&a),
		syncCmd(&a),
		runCmd(&a),
		retryFailedCmd(&a),
		purgeCmd(&a),
	)
	return cmd
}

func (a *app) syncer() *offline.Syncer {
	return offline.NewSyncer(a.store,
		offline.NewHTTPExecutor(a.cfg.ServerURL, a.cfg.Token, a.cfg.Timeout),
		offline.Options{
			MaxRetries:  a.cfg.MaxRetries,
			BaseBackoff: a.cfg.BaseBackoff,
			Probe:       offline.NewHTTPProbe(a.cfg.ServerURL+"/health", 5*time.Second),
			Logger:      a.log,
		})
}

func printYAML(cmd *cobra.Command, v interface{}) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

// enqueue create sales '{"product_id":1,"location_id":3,"quantity":"6"}'
func enqueueCmd(a *app) *cobra.Command {
	var recordID string
	cmd := &cobra.Command{
		Use:   "enqueue <create|update|delete> <table> [payload-json]",
		Short: "Queue an action for replay",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload interface{}
			if len(args) == 3 {
				raw := json.RawMessage(args[2])
				if !json.Valid(raw) {
					return fmt.Errorf("payload is not valid JSON")
				}
				payload = raw
			}
			action, err := offline.NewAction(offline.ActionType(args[0]), args[1], recordID, payload)
			if err != nil {
				return err
			}
			if err := a.store.Add(cmd.Context(), &action); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), action.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&recordID, "record-id", "", "Id of the record to update or delete")
	return cmd
}

func listCmd(a *app) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := a.store.List(cmd.Context(), offline.Status(status), limit)
			if err != nil {
				return err
			}
			out := make([]map[string]interface{}, 0, len(actions))
			for _, act := range actions {
				row := map[string]interface{}{
					"id":        act.ID,
					"type":      string(act.Type),
					"table":     act.Table,
					"status":    string(act.Status),
					"retries":   act.Retries,
					"timestamp": act.Timestamp.Format(time.RFC3339),
				}
				if act.RecordID != "" {
					row["record_id"] = act.RecordID
				}
				if act.LastError != "" {
					row["last_error"] = act.LastError
				}
				out = append(out, row)
			}
			return printYAML(cmd, out)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, failed, synced)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of actions")
	return cmd
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count actions by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printYAML(cmd, st)
		},
	}
}

func syncCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay pending actions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.syncer().Sync(cmd.Context(), force)
			if errors.Is(err, offline.ErrUnauthorized) {
				return fmt.Errorf("%w; set a fresh token in the config file or GOOMS_TOKEN and rerun", err)
			}
			if err != nil {
				return err
			}
			return printYAML(cmd, map[string]interface{}{
				"offline":   res.Offline,
				"attempted": res.Attempted,
				"synced":    res.Synced,
				"retrying":  res.Retrying,
				"failed":    res.Failed,
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Ignore backoff and retry every pending action now")
	return cmd
}

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Replay pending actions on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := a.syncer()
			a.log.Info("sync agent started",
				zap.String("server", a.cfg.ServerURL),
				zap.Duration("interval", a.cfg.Interval),
			)
			s.Start(ctx, a.cfg.Interval)
			<-ctx.Done()

			shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return s.Stop(shutdown)
		},
	}
}

func retryFailedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-failed",
		Short: "Move failed actions back to pending with a fresh retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.store.ResetFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d action(s) reset\n", n)
			return nil
		},
	}
}

func purgeCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete synced actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.store.PurgeSynced(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d action(s) purged\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Only purge actions synced before this age")
	return cmd
}

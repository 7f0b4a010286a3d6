// Command democtl manages the demo store file and inspects the event stream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/consultorio/internal/demostore"
	"github.com/jwalitptl/consultorio/pkg/messaging"
	"github.com/jwalitptl/consultorio/pkg/messaging/redis"
	"github.com/jwalitptl/consultorio/pkg/security"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:           "democtl",
		Short:         "Manage the demo store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := os.Getenv("DEMO_DB_PATH")
	if defaultPath == "" {
		defaultPath = demostore.DefaultPath
	}
	cmd.PersistentFlags().StringVar(&path, "path", defaultPath, "demo store file")

	store := func(cmd *cobra.Command) *demostore.Store {
		return demostore.New(path, zerolog.New(cmd.ErrOrStderr()).Level(zerolog.WarnLevel), nil)
	}

	cmd.AddCommand(
		resetCmd(store),
		dumpCmd(store),
		statsCmd(store),
		hashPasswordCmd(),
		eventsCmd(),
	)
	return cmd
}

func resetCmd(store func(*cobra.Command) *demostore.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Replace the demo data with the seed fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store(cmd)
			if err := st.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", st.Path())
			return nil
		},
	}
}

func dumpCmd(store func(*cobra.Command) *demostore.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the demo data as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := store(cmd).Read()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
}

func statsCmd(store func(*cobra.Command) *demostore.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count the records in the demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := store(cmd).Read()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "patients\t%d\n", len(d.Patients))
			fmt.Fprintf(out, "clinical_entries\t%d\n", len(d.ClinicalEntries))
			fmt.Fprintf(out, "radiographs\t%d\n", len(d.Radiographs))
			fmt.Fprintf(out, "people\t%d\n", len(d.People))
			fmt.Fprintf(out, "cases\t%d\n", len(d.Cases))
			fmt.Fprintf(out, "case_events\t%d\n", len(d.CaseEvents))
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for DEMO_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := security.NewBcryptHasher(cost).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 12, "bcrypt cost")
	return cmd
}

func eventsCmd() *cobra.Command {
	var url, channel string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print record events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return tailEvents(ctx, cmd, url, channel)
		},
	}
	cmd.Flags().StringVar(&url, "redis-url", os.Getenv("REDIS_URL"), "redis URL")
	cmd.Flags().StringVar(&channel, "channel", messaging.EventsChannel, "events channel")
	return cmd
}

func tailEvents(ctx context.Context, cmd *cobra.Command, url, channel string) error {
	if url == "" {
		return fmt.Errorf("--redis-url is required")
	}
	b, err := redis.NewRedisBroker(ctx, redis.Config{URL: url}, zerolog.New(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer b.Close()

	msgs, err := b.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for raw := range msgs {
		var evt messaging.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			fmt.Fprintf(out, "unreadable event: %s\n", raw)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\tactor=%s\n",
			evt.OccurredAt.Format("2006-01-02T15:04:05Z07:00"), evt.Module, evt.Type, evt.EntityID, evt.ActorID)
	}
	return nil
}

// Package main implements the venuebook admin CLI. It works directly
// against the configured booking store, so it needs the same config as the
// server but not a running server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"venuebook/internal/bootstrap"
	"venuebook/internal/config"
	"venuebook/internal/service/bookings"
)

var (
	configFile string
	version    = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "venuebook",
		Short: "Inspect and maintain the venue booking store",
		Long: `venuebook operates on the booking store configured for venuebook-server.
Configuration comes from VENUEBOOK_* environment variables or --config.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file")
	root.AddCommand(newListCmd(), newSweepCmd(), newCheckCmd(), newBookCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print all current bookings as JSON",
		Long: `Print all current bookings as a JSON array in storage order.
Expired bookings are removed first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *bookings.Service) error {
				all, err := svc.GetAllBookings(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), all)
			})
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired bookings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *bookings.Service) error {
				return svc.RemoveExpiredBookings(ctx)
			})
		},
	}
}

func newCheckCmd() *cobra.Command {
	var q bookings.ClashQuery
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a proposed reservation for clashes",
		Long: `Check whether a proposed reservation overlaps an existing booking of the
same venue. Touching intervals count as a clash.

Examples:
  venuebook check --venue v1 --date-from 2026-07-01 --date-to 2026-07-01 \
    --time-from 10:00 --time-to 12:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *bookings.Service) error {
				res, err := svc.CheckForClashes(ctx, q)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	intervalFlags(cmd, &q.VenueID, &q.DateFrom, &q.DateTo, &q.TimeFrom, &q.TimeTo)
	return cmd
}

func newBookCmd() *cobra.Command {
	var in bookings.SaveInput
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a venue if the slot is free",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *bookings.Service) error {
				b, err := svc.TryBook(ctx, in)
				var clashErr *bookings.ClashError
				if errors.As(err, &clashErr) {
					_ = writeJSON(cmd.OutOrStdout(), clashErr.Clashes)
					return err
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), b)
			})
		},
	}
	intervalFlags(cmd, &in.VenueID, &in.DateFrom, &in.DateTo, &in.TimeFrom, &in.TimeTo)
	cmd.Flags().StringVar(&in.VenueName, "venue-name", "", "venue display name")
	cmd.Flags().StringVar(&in.EventName, "event", "", "event name")
	cmd.Flags().StringSliceVar(&in.Emails, "email", nil, "invitee email (repeatable)")
	cmd.Flags().StringVar(&in.IdempotencyKey, "idempotency-key", "", "replay-safe request key")
	return cmd
}

func intervalFlags(cmd *cobra.Command, venue, dateFrom, dateTo, timeFrom, timeTo *string) {
	cmd.Flags().StringVar(venue, "venue", "", "venue id")
	cmd.Flags().StringVar(dateFrom, "date-from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(dateTo, "date-to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(timeFrom, "time-from", "", "start time (HH:MM)")
	cmd.Flags().StringVar(timeTo, "time-to", "", "end time (HH:MM)")
	_ = cmd.MarkFlagRequired("venue")
}

func withService(ctx context.Context, fn func(ctx context.Context, svc *bookings.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log := bootstrap.NewLogger(os.Stderr, cfg.LogLevel, "venuebook")

	st, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			fmt.Fprintf(os.Stderr, "store close failed: %v\n", err)
		}
	}()

	return fn(ctx, bookings.NewService(st, bootstrap.ServiceOptions(cfg, log)...))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

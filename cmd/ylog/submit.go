package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bft-labs/ylog/internal/domain"
	"github.com/bft-labs/ylog/internal/relay"
	"github.com/bft-labs/ylog/pkg/log"
)

func newSubmitCommand() *cobra.Command {
	var (
		url        string
		timestamp  string
		fields     domain.ContactFields
		supersedes uint64
		ref        string
		attempts   int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one contact to a running relay and wait for its ack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields.Timestamp = time.Now().UTC()
			if timestamp != "" {
				ts, err := time.Parse(time.RFC3339, timestamp)
				if err != nil {
					return fmt.Errorf("parse --time: %w", err)
				}
				fields.Timestamp = ts
			}
			// Validate locally before dialing.
			if _, err := domain.NewContact(fields); err != nil {
				return err
			}
			if ref == "" {
				ref = uuid.NewString()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			logger := log.NewZerologAdapterWithLogger(log.NewConsoleLogger(cmd.ErrOrStderr(), log.LevelWarn))
			client, err := relay.Dial(ctx, url, relay.DialOptions{
				Attempts: attempts,
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			ack, err := client.Submit(ctx, fields, supersedes, ref)
			if err != nil {
				return err
			}
			b, err := json.Marshal(ack)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", "ws://localhost:7373/message", "relay WebSocket URL")
	f.StringVar(&timestamp, "time", "", "contact time, RFC3339 (default: now)")
	f.StringVar(&fields.Band, "band", "", "band")
	f.StringVar(&fields.Mode, "mode", "", "mode")
	f.StringVar(&fields.Callsign, "callsign", "", "worked station")
	f.StringVar(&fields.SentReport, "sent-report", "59", "sent report")
	f.StringVar(&fields.SentExchange, "sent-exchange", "", "sent exchange")
	f.StringVar(&fields.ReceivedReport, "received-report", "59", "received report")
	f.StringVar(&fields.ReceivedExchange, "received-exchange", "", "received exchange")
	f.StringVar(&fields.Multiplier, "multiplier", "", "multiplier")
	f.IntVar(&fields.Score, "score", 1, "points for this contact")
	f.Uint64Var(&supersedes, "supersedes", 0, "sequence id this contact corrects")
	f.StringVar(&ref, "ref", "", "correlation token (default: random)")
	f.IntVar(&attempts, "attempts", 5, "dial attempts")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-live/internal/client"
)

func newChatCmd() *cobra.Command {
	var opts client.Options
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a room from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s as %s in room %s\n", opts.URL, opts.Author, opts.Room)
			fmt.Fprintln(out, "Type messages and press Enter to send. Ctrl+C to exit.")
			return client.Run(ctx, opts, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "ws://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&opts.Room, "room", "lobby", "room to join")
	cmd.Flags().StringVar(&opts.Author, "author", "cli-user", "name shown with your messages")
	cmd.Flags().Int64Var(&opts.Since, "since", -1, "replay history from this index (negative: live only)")
	return cmd
}

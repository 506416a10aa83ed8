package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-genui/pkg/conversation"
	"github.com/teslashibe/go-genui/pkg/realtime"
	"github.com/teslashibe/go-genui/pkg/render"
	"github.com/teslashibe/go-genui/pkg/store"
)

func newVoiceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "voice",
		Short: "Start a live voice session",
		Long: `Start a live voice session with the realtime model. Widgets requested by
voice are printed as cards. Press Ctrl+C to end the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateRealtime(); err != nil {
				return err
			}
			app, err := c.app()
			if err != nil {
				return err
			}
			defer app.Shutdown()

			sess := app.Session()
			out := cmd.OutOrStdout()
			r := render.New()

			unsubscribe := app.Store().Subscribe(func(msg store.Message) {
				fmt.Fprintln(out, r.RenderMessage(msg))
			})
			defer unsubscribe()
			sess.OnTranscript(func(role conversation.TranscriptRole, text string, final bool) {
				if final {
					fmt.Fprintf(out, "[%s] %s\n", role, text)
				}
			})
			sess.OnStatus(func(s realtime.Status) {
				fmt.Fprintf(out, "session %s\n", s)
			})

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if _, err := sess.Toggle(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return sess.Close()
		},
	}
}

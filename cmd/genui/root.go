package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-genui/internal/config"
	"github.com/teslashibe/go-genui/internal/log"
	"github.com/teslashibe/go-genui/pkg/genui"
)

// cli carries the resolved configuration to subcommands.
type cli struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:   "genui",
		Short: "Generative UI dashboard",
		Long: `genui turns requests like "show me AAPL" into stock, weather and kanban
widgets by letting a language model call tools.

Usage:
  genui serve                  Start the web API and event stream
  genui chat                   Chat in the terminal
  genui chat --once "weather"  Run one turn and print the result
  genui voice                  Start a live voice session
  genui tools                  List the widget tools
  genui version                Show version info

Configuration is read from flags, GENUI_* environment variables and an
optional YAML file (--config). OPENAI_API_KEY and GEMINI_API_KEY are honoured.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.v)
			if err != nil {
				return err
			}
			c.cfg = cfg
			log.Init(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	config.RegisterFlags(root.PersistentFlags())
	if err := config.BindFlags(c.v, root.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}

	root.AddCommand(
		newServeCmd(c),
		newChatCmd(c),
		newVoiceCmd(c),
		newToolsCmd(),
		newVersionCmd(),
	)
	return root
}

// app builds and initialises the application from the resolved config.
func (c *cli) app(opts ...genui.Option) (*genui.App, error) {
	opts = append([]genui.Option{genui.WithLogger(log.L())}, opts...)
	app, err := genui.New(c.cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := app.Init(); err != nil {
		return nil, err
	}
	return app, nil
}

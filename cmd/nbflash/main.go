package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/nbflash/internal/app"
	"github.com/conorfennell/nbflash/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the opened application between the root command's hooks and
// its subcommands.
type cli struct {
	app *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "nbflash",
		Short:         "Turn Jupyter notebooks into spaced-repetition flashcards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cfg.Debug)

			c.app, err = app.Open(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().AddFlagSet(config.Flags())

	root.AddCommand(
		c.addCmd(),
		c.updateCmd(),
		c.searchCmd(),
		c.showCmd(),
		c.quizCmd(),
		c.reviewCmd("correct", "Mark a flashcard as answered correctly", c.markCorrect),
		c.reviewCmd("incorrect", "Mark a flashcard as answered incorrectly", c.markIncorrect),
		c.buryCmd(),
		c.createCmd(),
		c.tagCmd(),
		c.serveCmd(),
	)
	return root
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

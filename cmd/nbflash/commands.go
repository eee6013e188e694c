package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/query"
	"github.com/conorfennell/nbflash/internal/web"
)

// --- add / update ---

func (c *cli) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path|git-url>...",
		Short: "Add notebooks, directories of notebooks or git repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				report, err := c.app.Add(path)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), path, report)
			}
			return nil
		},
	}
}

func (c *cli) updateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-ingest changed notebooks and drop missing ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename, _ := cmd.Flags().GetString("filename")
			tags, _ := cmd.Flags().GetStringSlice("tag")

			report, err := c.app.Update(query.FileFilter{Filename: filename, Tags: tags})
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), "update", report)
			return nil
		},
	}
	cmd.Flags().String("filename", "", "only files whose path contains this")
	cmd.Flags().StringSlice("tag", nil, "only files carrying every one of these tag substrings")
	return cmd
}

// --- search ---

func (c *cli) searchCmd() *cobra.Command {
	search := &cobra.Command{
		Use:   "search",
		Short: "Search files, cells or flashcards",
	}

	files := &cobra.Command{
		Use:   "files",
		Short: "Search files by path and tag (every tag must match)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename, _ := cmd.Flags().GetString("filename")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			for f, err := range c.app.SearchFiles(query.FileFilter{Filename: filename, Tags: tags}) {
				if err != nil {
					return err
				}
				printFile(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	files.Flags().String("filename", "", "path substring")
	files.Flags().StringSlice("tag", nil, "tag substrings")

	cells := &cobra.Command{
		Use:   "cells",
		Short: "Search cells by content, path and tag (any tag may match)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _ := cmd.Flags().GetString("content")
			filename, _ := cmd.Flags().GetString("filename")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			filter := query.CellFilter{Content: content, Filename: filename, Tags: tags}
			for cell, err := range c.app.SearchCells(filter) {
				if err != nil {
					return err
				}
				printCell(cmd.OutOrStdout(), cell)
			}
			return nil
		},
	}
	cells.Flags().String("content", "", "content substring")
	cells.Flags().String("filename", "", "path substring")
	cells.Flags().StringSlice("tag", nil, "tag substrings")

	flashcards := &cobra.Command{
		Use:   "flashcards",
		Short: "Search flashcards by content, level, due date, path and tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flashcardFilter(cmd)
			if err != nil {
				return err
			}
			for card, err := range c.app.SearchFlashcards(filter) {
				if err != nil {
					return err
				}
				printCard(cmd.OutOrStdout(), card, true)
			}
			return nil
		},
	}
	flashcards.Flags().String("content", "", "substring of any linked cell")
	flashcards.Flags().String("filename", "", "path substring of any linked file")
	flashcards.Flags().StringSlice("tag", nil, "tag substrings")
	flashcards.Flags().Int("min-level", 0, "lowest level")
	flashcards.Flags().Int("max-level", 0, "highest level (0 for no limit)")
	flashcards.Flags().String("due", "", "due within this duration from now, e.g. 0s or 24h")

	search.AddCommand(files, cells, flashcards)
	return search
}

func flashcardFilter(cmd *cobra.Command) (query.FlashcardFilter, error) {
	var filter query.FlashcardFilter
	filter.Content, _ = cmd.Flags().GetString("content")
	filter.Filename, _ = cmd.Flags().GetString("filename")
	filter.Tags, _ = cmd.Flags().GetStringSlice("tag")
	filter.MinLevel, _ = cmd.Flags().GetInt("min-level")
	filter.MaxLevel, _ = cmd.Flags().GetInt("max-level")
	if due, _ := cmd.Flags().GetString("due"); due != "" {
		d, err := time.ParseDuration(due)
		if err != nil {
			return filter, fmt.Errorf("invalid --due: %w", err)
		}
		filter.Due = query.DueWithin(d)
	}
	return filter, nil
}

// --- flashcards ---

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <flashcard-id>",
		Short: "Show a flashcard with its answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			card, err := c.app.Card(id)
			if err != nil {
				return err
			}
			printCard(cmd.OutOrStdout(), *card, true)
			return nil
		},
	}
}

func (c *cli) quizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Show the front of a random due flashcard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, _ := cmd.Flags().GetStringSlice("tag")
			card, err := c.app.Quiz(tags)
			if errors.Is(err, domain.ErrExhausted) {
				fmt.Fprintln(cmd.OutOrStdout(), "No flashcards due.")
				return nil
			}
			if err != nil {
				return err
			}
			printCard(cmd.OutOrStdout(), card, false)
			return nil
		},
	}
	cmd.Flags().StringSlice("tag", nil, "only flashcards matching any of these tag substrings")
	return cmd
}

func (c *cli) markCorrect(id int64) (*domain.Flashcard, error)   { return c.app.MarkCorrect(id) }
func (c *cli) markIncorrect(id int64) (*domain.Flashcard, error) { return c.app.MarkIncorrect(id) }

func (c *cli) reviewCmd(use, short string, review func(int64) (*domain.Flashcard, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <flashcard-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, err := review(id)
			if err != nil {
				return err
			}
			printSchedule(cmd.OutOrStdout(), f)
			return nil
		},
	}
}

func (c *cli) buryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bury <flashcard-id>",
		Short: "Postpone a flashcard without changing its level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, _ := cmd.Flags().GetDuration("for")
			f, err := c.app.Bury(id, d)
			if err != nil {
				return err
			}
			printSchedule(cmd.OutOrStdout(), f)
			return nil
		},
	}
	cmd.Flags().Duration("for", 0, "how long to postpone (default 4h)")
	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a flashcard from existing cells",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			front, _ := cmd.Flags().GetInt64Slice("front")
			back, _ := cmd.Flags().GetInt64Slice("back")
			extra, _ := cmd.Flags().GetInt64Slice("extra")
			id, err := c.app.CreateFlashcard(front, back, extra)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created flashcard %d\n", id)
			return nil
		},
	}
	cmd.Flags().Int64Slice("front", nil, "front cell ids")
	cmd.Flags().Int64Slice("back", nil, "back cell ids")
	cmd.Flags().Int64Slice("extra", nil, "extra cell ids")
	return cmd
}

// --- tags ---

func (c *cli) tagCmd() *cobra.Command {
	tag := &cobra.Command{
		Use:   "tag",
		Short: "Show or edit the tags of a file, cell or flashcard",
	}

	show := &cobra.Command{
		Use:   "show <file|cell|flashcard> <id>",
		Short: "Show effective tags",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			tags, err := c.app.Tags(ref)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tags, ", "))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <file|cell|flashcard> <id> <tag>",
		Short: "Add a tag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			changed, err := c.app.AddTag(ref, strings.TrimSpace(args[2]))
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d already tagged %q\n", ref.Kind, ref.ID, args[2])
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <file|cell|flashcard> <id> <tag>",
		Short: "Remove a tag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			recursive, _ := cmd.Flags().GetBool("recursive")
			changed, err := c.app.RemoveTag(ref, args[2], recursive)
			if err != nil {
				return err
			}
			for _, r := range changed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %q from %s %d\n", args[2], r.Kind, r.ID)
			}
			return nil
		},
	}
	remove.Flags().BoolP("recursive", "r", false, "remove the tag where it is inherited from")

	tag.AddCommand(show, add, remove)
	return tag
}

// --- serve ---

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return web.NewServer(c.app).ListenAndServe(ctx, c.app.Config.Addr())
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseRef(kind, id string) (domain.Ref, error) {
	n, err := parseID(id)
	if err != nil {
		return domain.Ref{}, err
	}
	switch k := domain.Kind(kind); k {
	case domain.KindFile, domain.KindCell, domain.KindFlashcard:
		return domain.Ref{Kind: k, ID: n}, nil
	}
	return domain.Ref{}, fmt.Errorf("unknown kind %q: want file, cell or flashcard", kind)
}

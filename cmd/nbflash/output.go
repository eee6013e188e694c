package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/query"
	"github.com/conorfennell/nbflash/internal/sync"
)

func printReport(w io.Writer, label string, r sync.Report) {
	fmt.Fprintf(w, "%s: %d added, %d updated, %d unchanged, %d removed, %d cells, %d flashcards\n",
		label, r.Added, r.Updated, r.Unchanged, r.Removed, r.Cells, r.Flashcards)
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  failed %s: %v\n", f.Path, f.Err)
	}
}

func printFile(w io.Writer, f domain.File) {
	fmt.Fprintf(w, "%d\t%s\t[%s]\n", f.ID, f.Path, strings.Join(f.Tags, ", "))
}

func printCell(w io.Writer, c domain.Cell) {
	fmt.Fprintf(w, "%d\t(file %d)\t%s\n", c.ID, c.FileID, firstLine(c.Content))
}

func printCard(w io.Writer, c query.Card, answer bool) {
	fmt.Fprintf(w, "Flashcard %d  level %d  due %s  [%s]\n",
		c.ID, c.Level, c.NextReview.Local().Format(time.DateTime), strings.Join(c.EffectiveTags, ", "))
	for _, cell := range c.Fronts {
		fmt.Fprintln(w, indent(cell.Content))
	}
	if !answer {
		return
	}
	fmt.Fprintln(w, "  ---")
	for _, cell := range c.Backs {
		fmt.Fprintln(w, indent(cell.Content))
	}
	for _, cell := range c.Extras {
		fmt.Fprintln(w, indent(cell.Content))
	}
}

func printSchedule(w io.Writer, f *domain.Flashcard) {
	fmt.Fprintf(w, "Flashcard %d: level %d, next review %s\n",
		f.ID, f.Level, f.NextReview.Local().Format(time.DateTime))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

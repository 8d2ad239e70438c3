// Package main prints a summary of a TaleForge server database: record counts,
// the most viewed stories and the busiest tags.
//
// Usage:
//
//	go run ./cmd/dbinspect -data-path ~/.taleforge/server
//
// The server must be stopped; the database is opened read-only.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/listing"
	"github.com/taleforge/taleforge/internal/store"
)

func main() {
	fs := flag.NewFlagSet("dbinspect", flag.ExitOnError)
	dataPath := fs.String("data-path", "", "Server data directory (default: DATA_PATH or ~/.taleforge/server)")
	top := fs.Int("top", 5, "Number of stories and tags to list")
	_ = fs.Parse(os.Args[1:])

	var args []string
	if *dataPath != "" {
		args = []string{"-data-path", *dataPath}
	}
	cfg, _, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	st, err := store.OpenReadOnly(filepath.Join(cfg.Server.DataPath, "db"), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := inspect(context.Background(), st, os.Stdout, *top); err != nil {
		fmt.Fprintf(os.Stderr, "Error inspecting database: %v\n", err)
		os.Exit(1)
	}
}

func inspect(ctx context.Context, st *store.Store, w io.Writer, top int) error {
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	records, err := st.Stories(ctx)
	if err != nil {
		return err
	}

	published := make([]domain.Story, 0, len(records))
	for _, r := range records {
		if r.Published {
			published = append(published, r.ToDomain(domain.UserSummary{ID: r.AuthorID}))
		}
	}

	fmt.Fprintln(w, "=== Database Inspection ===")
	fmt.Fprintf(w, "Users:          %d\n", stats.Users)
	fmt.Fprintf(w, "Stories:        %d (%d published, %d drafts)\n", stats.Stories, len(published), stats.Stories-len(published))
	fmt.Fprintf(w, "Comments:       %d\n", stats.Comments)
	fmt.Fprintf(w, "Story likes:    %d\n", stats.StoryLikes)
	fmt.Fprintf(w, "Comment likes:  %d\n", stats.CommentLikes)
	fmt.Fprintf(w, "Ratings:        %d\n", stats.Ratings)

	if len(published) == 0 {
		return nil
	}

	slices.SortStableFunc(published, func(a, b domain.Story) int {
		return cmp.Or(cmp.Compare(b.Views, a.Views), a.ID.Compare(b.ID))
	})
	fmt.Fprintln(w, "\n=== Most Viewed ===")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR ID\tVIEWS\tLIKES")
	for _, s := range published[:min(top, len(published))] {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.Title, s.Author.ID, s.Views, s.Likes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if tags := listing.PopularTags(published, top); len(tags) > 0 {
		fmt.Fprintln(w, "\n=== Popular Tags ===")
		for _, t := range tags {
			fmt.Fprintf(w, "%-20s %d\n", t.Tag, t.Count)
		}
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/engagement"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/listing"
	"github.com/taleforge/taleforge/internal/mdns"
	"github.com/taleforge/taleforge/internal/session"
)

const dateFormat = "2006-01-02"

func plural(n int64, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func formatDate(ts domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(dateFormat)
}

func printListing(w io.Writer, res listing.Result, showState bool) {
	page := res.Page
	if len(page.Content) == 0 {
		fmt.Fprintln(w, "No stories found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "ID\tTITLE\tAUTHOR\tVIEWS\tLIKES\tCREATED"
	if showState {
		header += "\tSTATE"
	}
	fmt.Fprintln(tw, header)
	for _, s := range page.Content {
		row := fmt.Sprintf("%s\t%s\t%s\t%d\t%d\t%s",
			s.ID, truncate(s.Title, 40), s.Author.Name(), s.Views, s.Likes, formatDate(s.CreatedAt))
		if showState {
			row += "\t" + publishState(s)
		}
		fmt.Fprintln(tw, row)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nPage %d of %d (%s)\n", page.Number+1, max(page.TotalPages, 1), plural(int64(page.TotalElements), "story"))
	if len(res.PopularTags) > 0 {
		tags := make([]string, len(res.PopularTags))
		for i, t := range res.PopularTags {
			tags[i] = fmt.Sprintf("%s (%d)", t.Tag, t.Count)
		}
		fmt.Fprintf(w, "Popular tags: %s\n", strings.Join(tags, ", "))
	}
}

// formatRating renders a mean rating with its vote count, or "unrated".
func formatRating(rating float64, ratings int64) string {
	if ratings == 0 {
		return "unrated"
	}
	return fmt.Sprintf("%s/5 (%s)", strconv.FormatFloat(rating, 'f', -1, 64), plural(ratings, "rating"))
}

func printRanking(w io.Writer, stories []domain.Story) {
	if len(stories) == 0 {
		fmt.Fprintln(w, "No rated stories yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tTITLE\tAUTHOR\tRATING")
	for i, s := range stories {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, s.ID, truncate(s.Title, 40), s.Author.Name(), formatRating(s.Rating, s.Ratings))
	}
	_ = tw.Flush()
}

func publishState(s domain.Story) string {
	if s.Published {
		return "published"
	}
	return "draft"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printStory(w io.Writer, snap engagement.Snapshot) {
	s := snap.Story
	if s == nil {
		return
	}
	fmt.Fprintf(w, "%s\n", s.Title)
	fmt.Fprintf(w, "by %s (@%s), %s", s.Author.Name(), s.Author.Username, formatDate(s.CreatedAt))
	if !s.Published {
		fmt.Fprint(w, " [draft]")
	}
	fmt.Fprintln(w)
	if len(s.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(s.Tags, ", "))
	}
	fmt.Fprintf(w, "%s, %s", plural(s.Views, "view"), plural(s.Likes, "like"))
	if snap.HasLiked {
		fmt.Fprint(w, " (you liked this)")
	}
	fmt.Fprintln(w)
	if s.Ratings > 0 {
		fmt.Fprintf(w, "Rating: %s\n", formatRating(s.Rating, s.Ratings))
	}
	fmt.Fprintf(w, "\n%s\n\n%s\n", s.Description, s.Content)
}

func printComments(w io.Writer, list []domain.Comment) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No comments yet")
		return
	}
	for _, c := range list {
		edited := ""
		if c.Edited {
			edited = " (edited)"
		}
		liked := ""
		if c.Liked {
			liked = ", liked by you"
		}
		fmt.Fprintf(w, "[%s] %s, %s%s: %s%s\n", c.ID, c.Author.Name(), c.CreatedAt.Local().Format(time.DateTime), edited, plural(c.Likes, "like"), liked)
		for line := range strings.SplitSeq(c.Content, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// printError reports err with any field-level messages the server or the local
// validator attached.
func printError(w io.Writer, err error) {
	if errors.Is(err, domainerrors.ErrNotConfirmed) {
		fmt.Fprintln(w, "Cancelled")
		return
	}

	fmt.Fprintf(w, "Error: %v\n", err)

	var fields map[string]string
	var ae *session.AuthError
	var de *domainerrors.Error
	switch {
	case errors.As(err, &ae):
		fields = ae.Fields
	case errors.As(err, &de):
		fields = de.Fields()
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(w, "  %s: %s\n", k, fields[k])
	}
}

func printServers(w io.Writer, servers []mdns.Server) {
	if len(servers) == 0 {
		fmt.Fprintln(w, "No servers found on the local network")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURL\tVERSION")
	for _, s := range servers {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.URL(), s.Version)
	}
	_ = tw.Flush()
	fmt.Fprintln(w, "\nConnect with: taleforge -api-url <URL> <command>")
}

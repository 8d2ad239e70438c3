package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/taleforge/taleforge/internal/comments"
	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/engagement"
	"github.com/taleforge/taleforge/internal/listing"
	"github.com/taleforge/taleforge/internal/mdns"
	"github.com/taleforge/taleforge/internal/textimport"
)

type command struct {
	usage string
	run   func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"login":          {"<email> <password>", runLogin},
	"register":       {"<username> <email> <password> [displayName]", runRegister},
	"logout":         {"", runLogout},
	"whoami":         {"", runWhoami},
	"discover":       {"[--wait 3s]", runDiscover},
	"list":           {"[--page N] [--size N] [--sort createdAt|views|likes|rating] [--dir ASC|DESC] [--tag T] [--search S]", runList},
	"search":         {"[--page N] [--size N] <text>", runSearch},
	"mine":           {"[--page N] [--size N] [--sort ...] [--dir ...]", runMine},
	"top":            {"[--limit N]", runTop},
	"author":         {"<userID>", runAuthor},
	"create":         {"--title T --description D (--content C | --content-file F) [--tags a,b]", runCreate},
	"edit":           {"[--title T] [--description D] [--content C | --content-file F] [--tags a,b] <storyID>", runEdit},
	"show":           {"<storyID>", runShow},
	"like":           {"<storyID>", runLike},
	"rate":           {"<storyID> <0-5>", runRate},
	"publish":        {"<storyID>", runPublish},
	"unpublish":      {"<storyID>", runUnpublish},
	"delete":         {"[--yes] <storyID>", runDelete},
	"comments":       {"<storyID>", runComments},
	"comment":        {"<storyID> <text>", runComment},
	"comment-edit":   {"<storyID> <commentID> <text>", runCommentEdit},
	"comment-delete": {"[--yes] <storyID> <commentID>", runCommentDelete},
	"comment-like":   {"<storyID> <commentID>", runCommentLike},
}

var commandOrder = []string{
	"login", "register", "logout", "whoami", "discover",
	"list", "search", "mine", "top", "author", "create", "edit", "show", "like", "rate", "publish", "unpublish", "delete",
	"comments", "comment", "comment-edit", "comment-delete", "comment-like",
}

func exactArgs(args []string, n int) error {
	if len(args) != n {
		return errUsage
	}
	return nil
}

func parseID(s string) (domain.ID, error) {
	id, err := domain.ParseID(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	return id, nil
}

func runLogin(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	user, err := c.app.Session().Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Signed in as %s (@%s)\n", user.Name(), user.Username)
	return nil
}

func runRegister(ctx context.Context, c *cli, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errUsage
	}
	profile := domain.RegisterProfile{Username: args[0], Email: args[1], Password: args[2]}
	if len(args) == 4 {
		profile.DisplayName = args[3]
	}
	user, err := c.app.Session().Register(ctx, profile)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Welcome, %s! You are signed in as @%s\n", user.Name(), user.Username)
	return nil
}

func runLogout(_ context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 0); err != nil {
		return err
	}
	c.app.Session().Logout()
	fmt.Fprintln(c.out, "Signed out")
	return nil
}

// discoverServers browses the local network; tests replace it.
var discoverServers = mdns.Discover

func runDiscover(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(c.out)
	wait := fs.Duration("wait", 3*time.Second, "How long to listen for announcements")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return errUsage
	}

	servers, err := discoverServers(ctx, *wait)
	if err != nil {
		return err
	}
	printServers(c.out, servers)
	return nil
}

func runWhoami(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 0); err != nil {
		return err
	}
	if _, ok := c.app.Session().User(); !ok {
		fmt.Fprintln(c.out, "Not signed in")
		return nil
	}
	user, err := c.app.Session().RefreshUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (@%s)\n", user.Name(), user.Username)
	fmt.Fprintf(c.out, "ID: %s\n", user.ID)
	if user.Email != "" {
		fmt.Fprintf(c.out, "Email: %s\n", user.Email)
	}
	return nil
}

// parseQuery reads listing flags. Pages are 1-based on the command line.
func parseQuery(name string, args []string, out io.Writer) (domain.ListingQuery, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	page := fs.Int("page", 1, "Page number, starting at 1")
	size := fs.Int("size", 0, "Stories per page")
	sortBy := fs.String("sort", "", "Sort key: createdAt, views, likes or rating")
	dir := fs.String("dir", "", "Sort direction: ASC or DESC")
	tag := fs.String("tag", "", "Only stories with this tag")
	search := fs.String("search", "", "Text to look for in titles, descriptions, tags and authors")
	if err := fs.Parse(args); err != nil {
		return domain.ListingQuery{}, errUsage
	}
	if fs.NArg() > 0 {
		return domain.ListingQuery{}, errUsage
	}
	return domain.ListingQuery{
		Page:      *page - 1,
		PageSize:  *size,
		SortKey:   domain.SortKey(*sortBy),
		Direction: domain.Direction(*dir),
		Tag:       *tag,
		Search:    *search,
	}, nil
}

func runList(ctx context.Context, c *cli, args []string) error {
	q, err := parseQuery("list", args, c.out)
	if err != nil {
		return err
	}
	res, err := c.app.Listing().Query(ctx, c.app.Query(q))
	if err != nil {
		return err
	}
	printListing(c.out, res, false)
	return nil
}

func runSearch(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(c.out)
	page := fs.Int("page", 1, "Page number, starting at 1")
	size := fs.Int("size", 0, "Stories per page")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}
	if *size <= 0 {
		*size = c.app.Query(domain.ListingQuery{}).PageSize
	}
	page0 := max(*page-1, 0)

	res, err := c.app.Client().SearchStories(ctx, strings.Join(fs.Args(), " "), page0, *size)
	if err != nil {
		return err
	}
	printListing(c.out, listing.Result{Page: res}, false)
	return nil
}

func runMine(ctx context.Context, c *cli, args []string) error {
	q, err := parseQuery("mine", args, c.out)
	if err != nil {
		return err
	}
	res, err := c.app.Listing().Mine(ctx, c.app.Query(q))
	if err != nil {
		return err
	}
	printListing(c.out, res, true)
	return nil
}

func runTop(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	fs.SetOutput(c.out)
	limit := fs.Int("limit", domain.TopRatedLimit, "Number of stories")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return errUsage
	}

	stories, err := c.app.Client().TopRated(ctx, *limit)
	if err != nil {
		return err
	}
	printRanking(c.out, stories)
	return nil
}

func runAuthor(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	stories, err := c.app.Client().StoriesByAuthor(ctx, id)
	if err != nil {
		return err
	}
	printListing(c.out, listing.Result{Page: listing.Paginate(stories, 0, max(len(stories), 1))}, false)
	return nil
}

// storyFlags are the draft fields shared by create and edit.
type storyFlags struct {
	fs          *flag.FlagSet
	title       *string
	description *string
	content     *string
	contentFile *string
	tags        *string
}

func newStoryFlags(name string, out io.Writer) *storyFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return &storyFlags{
		fs:          fs,
		title:       fs.String("title", "", "Story title"),
		description: fs.String("description", "", "Short description"),
		content:     fs.String("content", "", "Story text"),
		contentFile: fs.String("content-file", "", "Read the story text from a file; HTML is converted to Markdown"),
		tags:        fs.String("tags", "", "Comma separated tags"),
	}
}

// apply overwrites the fields of d that were given on the command line.
func (f *storyFlags) apply(d domain.StoryDraft) (domain.StoryDraft, error) {
	if *f.content != "" && *f.contentFile != "" {
		return d, fmt.Errorf("%w: --content and --content-file are exclusive", errUsage)
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "title":
			d.Title = *f.title
		case "description":
			d.Description = *f.description
		case "content":
			d.Content = *f.content
		case "tags":
			d.Tags = splitTags(*f.tags)
		}
	})
	if *f.contentFile != "" {
		text, err := textimport.ReadFile(*f.contentFile)
		if err != nil {
			return d, err
		}
		d.Content = text
	}
	return d.Normalized(), nil
}

func runCreate(ctx context.Context, c *cli, args []string) error {
	f := newStoryFlags("create", c.out)
	if err := f.fs.Parse(args); err != nil || f.fs.NArg() > 0 {
		return errUsage
	}
	draft, err := f.apply(domain.StoryDraft{})
	if err != nil {
		return err
	}

	story, err := c.app.Client().CreateStory(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created draft %s: %s\n", story.ID, story.Title)
	fmt.Fprintf(c.out, "Run `taleforge publish %s` to make it public.\n", story.ID)
	return nil
}

func runEdit(ctx context.Context, c *cli, args []string) error {
	f := newStoryFlags("edit", c.out)
	if err := f.fs.Parse(args); err != nil || f.fs.NArg() != 1 {
		return errUsage
	}
	e, err := openStory(ctx, c, f.fs.Arg(0))
	if err != nil {
		return err
	}
	defer e.Close()

	draft, err := f.apply(domain.DraftOf(*e.Snapshot().Story))
	if err != nil {
		return err
	}
	if err := e.Update(ctx, draft); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated %q\n", e.Snapshot().Story.Title)
	return nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// openStory loads one story into a fresh engine.
func openStory(ctx context.Context, c *cli, arg string) (*engagement.Engine, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	e := c.app.Engagement()
	if err := e.Load(ctx, id); err != nil {
		return nil, err
	}
	return e, nil
}

func runShow(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	e, err := openStory(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer e.Close()
	e.Wait()
	printStory(c.out, e.Snapshot())
	return nil
}

func runLike(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	e, err := openStory(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer e.Close()
	defer e.Wait()

	if err := e.ToggleLike(ctx); err != nil {
		return err
	}
	snap := e.Snapshot()
	verb := "Unliked"
	if snap.HasLiked {
		verb = "Liked"
	}
	fmt.Fprintf(c.out, "%s %q (%s)\n", verb, snap.Story.Title, plural(snap.Story.Likes, "like"))
	return nil
}

func runRate(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil || value < domain.MinRating || value > domain.MaxRating {
		return fmt.Errorf("%w: rating must be a number from 0 to 5", errUsage)
	}

	sum, err := c.app.Client().RateStory(ctx, id, value)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Rated %s: now %s\n", id, formatRating(sum.Rating, sum.Ratings))
	return nil
}

func runPublish(ctx context.Context, c *cli, args []string) error {
	return transition(ctx, c, args, (*engagement.Engine).Publish, "Published")
}

func runUnpublish(ctx context.Context, c *cli, args []string) error {
	return transition(ctx, c, args, (*engagement.Engine).Unpublish, "Unpublished")
}

func transition(ctx context.Context, c *cli, args []string, action func(*engagement.Engine, context.Context) error, done string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	e, err := openStory(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer e.Close()
	defer e.Wait()

	if err := action(e, ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %q\n", done, e.Snapshot().Story.Title)
	return nil
}

func runDelete(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	e, err := openStory(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer e.Close()
	defer e.Wait()

	title := e.Snapshot().Story.Title
	if err := e.Delete(ctx, c.confirm(fmt.Sprintf("Delete %q and all its comments?", title))); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted %q\n", title)
	return nil
}

// openThread loads the comment thread of the story named by arg.
func openThread(ctx context.Context, c *cli, arg string) (*comments.Thread, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	t := c.app.Thread(id)
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func runComments(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	t, err := openThread(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer t.Close()
	printComments(c.out, t.Snapshot().Comments)
	return nil
}

func runComment(ctx context.Context, c *cli, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t := c.app.Thread(id)
	defer t.Close()

	created, err := t.Create(ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Posted comment %s\n", created.ID)
	return nil
}

func runCommentEdit(ctx context.Context, c *cli, args []string) error {
	if len(args) < 3 {
		return errUsage
	}
	commentID, err := parseID(args[1])
	if err != nil {
		return err
	}
	t, err := openThread(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer t.Close()

	if err := t.BeginEdit(commentID); err != nil {
		return err
	}
	if err := t.SetDraft(strings.Join(args[2:], " ")); err != nil {
		return err
	}
	updated, err := t.SaveEdit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated comment %s\n", updated.ID)
	return nil
}

func runCommentDelete(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	commentID, err := parseID(args[1])
	if err != nil {
		return err
	}
	t, err := openThread(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer t.Close()

	if err := t.Delete(ctx, commentID, c.confirm("Delete this comment?")); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted comment %s\n", commentID)
	return nil
}

func runCommentLike(ctx context.Context, c *cli, args []string) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	commentID, err := parseID(args[1])
	if err != nil {
		return err
	}
	t, err := openThread(ctx, c, args[0])
	if err != nil {
		return err
	}
	defer t.Close()

	if err := t.ToggleLike(ctx, commentID); err != nil {
		return err
	}
	for _, cm := range t.Snapshot().Comments {
		if cm.ID == commentID {
			verb := "Unliked"
			if cm.Liked {
				verb = "Liked"
			}
			fmt.Fprintf(c.out, "%s comment %s (%s)\n", verb, cm.ID, plural(cm.Likes, "like"))
		}
	}
	return nil
}

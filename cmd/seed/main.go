// Package main seeds a TaleForge data directory with demo writers, stories and
// engagement, for trying the CLI and API against realistic listings.
//
// Usage:
//
//	go run ./cmd/seed -data-path ~/.taleforge/server
//	go run ./cmd/seed -data-path ~/.taleforge/server -writers 8 -stories 5
//
// Run it while the server is stopped. Writers sign in with the password "taleforge".
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taleforge/taleforge/internal/auth"
	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/service"
	"github.com/taleforge/taleforge/internal/store"
	"github.com/taleforge/taleforge/internal/validation"
)

// demoPassword is shared by every seeded writer.
const demoPassword = "taleforge"

type options struct {
	Writers int
	Stories int
	Seed    uint64
}

func main() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dataPath := fs.String("data-path", "", "Server data directory (default: DATA_PATH or ~/.taleforge/server)")
	writers := fs.Int("writers", 5, "Number of demo writers")
	stories := fs.Int("stories", 4, "Stories per writer")
	seed := fs.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
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

	dbPath := filepath.Join(cfg.Server.DataPath, "db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	st, err := store.Open(dbPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	svc, err := newServices(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start services: %v\n", err)
		os.Exit(1)
	}

	opts := options{Writers: *writers, Stories: *stories, Seed: *seed}
	if err := run(context.Background(), svc, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Restart the server to rebuild its search index.")
}

type services struct {
	auth     *service.AuthService
	stories  *service.StoryService
	comments *service.CommentService
}

// newServices builds the business services over st. Seeded users never use the
// tokens issued here, so a throwaway key is enough.
func newServices(st *store.Store) (*services, error) {
	key := make([]byte, auth.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(key, time.Minute)
	if err != nil {
		return nil, err
	}
	v := validation.New()
	stories := service.NewStoryService(st, v, nil)
	return &services{
		auth:     service.NewAuthService(st, tokens, v, nil),
		stories:  stories,
		comments: service.NewCommentService(st, stories, v, nil),
	}, nil
}

var (
	names     = []string{"Ada Lark", "Bram Hollow", "Cleo Marsh", "Dev Okafor", "Esme Vale", "Finn Ashby", "Gwen Tarrow", "Hugo Penn"}
	subjects  = []string{"Lantern", "Tide", "Clockmaker", "Orchard", "Cartographer", "Glass", "Wolf", "Library"}
	settings  = []string{"of the North Shore", "Beneath the Hill", "at Midnight", "in Winter", "of Small Hours", "Across the Salt Flats"}
	tagPool   = []string{"fantasy", "mystery", "romance", "sci-fi", "horror", "slice-of-life", "sea", "slow-burn"}
	reactions = []string{"Couldn't stop reading.", "That ending!", "Lovely imagery.", "More please.", "The second act dragged a little."}
)

// run creates opts.Writers writers with opts.Stories stories each, publishes most
// of them and adds views, likes and comments from the other writers. Writers that
// already exist are signed in and reused.
func run(ctx context.Context, svc *services, opts options, out io.Writer) error {
	rng := newRand(opts.Seed)

	writers := make([]*domain.UserSummary, 0, opts.Writers)
	for i := range opts.Writers {
		u, err := ensureWriter(ctx, svc.auth, i)
		if err != nil {
			return err
		}
		writers = append(writers, u)
	}
	fmt.Fprintf(out, "Writers ready: %d\n", len(writers))

	var published []domain.Story
	drafts := 0
	for _, w := range writers {
		for range opts.Stories {
			s, err := svc.stories.Create(ctx, w, randomDraft(rng))
			if err != nil {
				return fmt.Errorf("create story for %s: %w", w.Username, err)
			}
			// One in five stays a draft.
			if rng.IntN(5) == 0 {
				drafts++
				continue
			}
			if s, err = svc.stories.SetPublished(ctx, w, s.ID, true); err != nil {
				return fmt.Errorf("publish %s: %w", s.ID, err)
			}
			published = append(published, s)
		}
	}
	fmt.Fprintf(out, "Stories created: %d published, %d drafts\n", len(published), drafts)

	var views, likes, comments int
	for _, s := range published {
		for _, reader := range writers {
			if reader.ID == s.Author.ID {
				continue
			}
			n := rng.IntN(4)
			for range n {
				if _, err := svc.stories.RecordView(ctx, reader, s.ID); err != nil {
					return err
				}
			}
			views += n
			if n > 0 && rng.IntN(2) == 0 {
				if _, err := svc.stories.SetLike(ctx, reader, s.ID, true); err != nil {
					return err
				}
				likes++
			}
			if n > 1 && rng.IntN(3) == 0 {
				text := reactions[rng.IntN(len(reactions))]
				if _, err := svc.comments.Create(ctx, reader, s.ID, text); err != nil {
					return err
				}
				comments++
			}
		}
	}
	fmt.Fprintf(out, "Engagement: %d views, %d likes, %d comments\n", views, likes, comments)
	return nil
}

func newRand(seed uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, seed>>1|1))
}

func ensureWriter(ctx context.Context, svc *service.AuthService, i int) (*domain.UserSummary, error) {
	name := names[i%len(names)]
	username := strings.ToLower(strings.Fields(name)[0])
	if i >= len(names) {
		username = fmt.Sprintf("%s%d", username, i/len(names)+1)
	}
	email := username + "@example.com"

	res, err := svc.Register(ctx, domain.RegisterProfile{
		Username:    username,
		Email:       email,
		Password:    demoPassword,
		DisplayName: name,
	})
	if errors.Is(err, domainerrors.ErrConflict) {
		res, err = svc.Login(ctx, domain.Credentials{Email: email, Password: demoPassword})
	}
	if err != nil {
		return nil, fmt.Errorf("writer %s: %w", username, err)
	}
	return &res.User, nil
}

func randomDraft(rng *mrand.Rand) domain.StoryDraft {
	subject := subjects[rng.IntN(len(subjects))]
	title := fmt.Sprintf("The %s %s", subject, settings[rng.IntN(len(settings))])

	tags := make([]string, 0, 3)
	for _, i := range rng.Perm(len(tagPool))[:1+rng.IntN(3)] {
		tags = append(tags, tagPool[i])
	}

	var b strings.Builder
	for range 3 + rng.IntN(4) {
		fmt.Fprintf(&b, "The %s waited where the road ran out, and nobody in the village could say for how long. ",
			strings.ToLower(subject))
	}
	return domain.StoryDraft{
		Title:       title,
		Description: fmt.Sprintf("A short tale about a %s and the people who keep it.", strings.ToLower(subject)),
		Content:     strings.TrimSpace(b.String()),
		Tags:        tags,
	}
}

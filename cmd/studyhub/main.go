package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/angelmondragon/studyhub-backend/internal/notifications"
	"github.com/angelmondragon/studyhub-backend/internal/notifications/dispatch"
	"github.com/angelmondragon/studyhub-backend/internal/notifications/inbox"
	"github.com/angelmondragon/studyhub-backend/internal/push"
	resourceclient "github.com/angelmondragon/studyhub-backend/internal/resources/client"
	"github.com/angelmondragon/studyhub-backend/pkg/apiclient"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/db/models"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/angelmondragon/studyhub-backend/pkg/env"
	"github.com/angelmondragon/studyhub-backend/pkg/firebase"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/joho/godotenv"
)

const (
	envAPIURL   = "STUDYHUB_API_URL"
	envAPIToken = "STUDYHUB_API_TOKEN"
	timeout     = 90 * time.Second
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: studyhub <command> [flags]

commands:
  notify      create a notification (falls back to a direct store write)
  resources   list resources
  summary     generate a summary for a resource
  flashcards  generate flashcards for a resource
  chat        ask a question about a resource
  inbox       show notifications and the unread count
  push-token  register or remove a device push token`)
}

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{
		ServiceName: "studyhub-cli",
		Level:       logger.ParseLevel(os.Getenv("STUDYHUB_LOG_LEVEL")),
		Output:      os.Stderr,
	})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "notify":
		err = runNotify(ctx, logg, args)
	case "resources":
		err = runResources(ctx, args)
	case "summary":
		err = runSummary(ctx, args)
	case "flashcards":
		err = runFlashcards(ctx, args)
	case "chat":
		err = runChat(ctx, args)
	case "inbox":
		err = runInbox(ctx, args)
	case "push-token":
		err = runPushToken(ctx, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func apiFlags(fs *flag.FlagSet) (*string, *string) {
	base := fs.String("api", env.Get(envAPIURL, "http://localhost:8080"), "StudyHub API base URL")
	token := fs.String("token", os.Getenv(envAPIToken), "Firebase ID token sent as a bearer token")
	return base, token
}

func newAPI(base, token string) *apiclient.Client {
	opts := []apiclient.Option{}
	if token != "" {
		opts = append(opts, apiclient.WithToken(func(context.Context) (string, error) { return token, nil }))
	}
	return apiclient.New(base, opts...)
}

func runNotify(ctx context.Context, logg *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("notify", flag.ExitOnError)
	base, token := apiFlags(fs)
	kind := fs.String("kind", "system", "system|training|tutorial|library|custom")
	title := fs.String("title", "", "notification title")
	message := fs.String("message", "", "notification message (custom, training, system)")
	link := fs.String("link", "", "link opened from the notification")
	resourceID := fs.String("resource", "", "resource id (library)")
	course := fs.String("course", "", "course name (library)")
	postedBy := fs.String("posted-by", "", "poster display name (library)")
	typ := fs.String("type", string(enums.NotificationTypeSystem), "notification type (custom)")
	sendEmail := fs.Bool("email", false, "request the email fan-out (custom)")
	noFallback := fs.Bool("no-fallback", false, "do not write to the store when the API fails")
	_ = fs.Parse(args)

	var req dispatch.Request
	switch *kind {
	case "system":
		req = dispatch.SystemAnnouncement(*title, *message)
	case "training":
		req = dispatch.Training(*title, *message, *link)
	case "tutorial":
		req = dispatch.Tutorial(*title, *link)
	case "library":
		req = dispatch.NewLibraryItem(dispatch.LibraryItem{
			ResourceID: *resourceID,
			Title:      *title,
			Course:     *course,
			PostedBy:   *postedBy,
		})
	case "custom":
		req = dispatch.Request{
			Title:     *title,
			Message:   *message,
			Type:      enums.NotificationType(*typ),
			Link:      *link,
			SendEmail: *sendEmail,
		}
	default:
		return fmt.Errorf("unknown -kind %q", *kind)
	}

	var store dispatch.Store
	if !*noFallback {
		s, closeStore, err := fallbackStore(ctx, logg)
		if err != nil {
			logg.Warn(logg.WithField(ctx, "reason", err.Error()), "store fallback unavailable")
		} else {
			defer closeStore()
			store = s
		}
	}

	d := dispatch.New(dispatch.NewHTTPBroadcaster(newAPI(*base, *token)), store, logg)
	res := d.CreateNotification(ctx, req)
	printJSON(map[string]any{
		"success":        res.Success,
		"outcome":        res.Outcome,
		"notificationId": res.NotificationID,
		"emailQueued":    res.EmailQueued,
	})
	return res.Err
}

// fallbackStore opens the configured notification repository for direct writes.
func fallbackStore(ctx context.Context, logg *logger.Logger) (dispatch.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.UsesSQL() {
		client, err := db.New(ctx, cfg.Store, cfg.DB, logg)
		if err != nil {
			return nil, nil, err
		}
		return notifications.NewSQLRepository(client.DB()), func() { _ = client.Close() }, nil
	}
	fb := firebase.New(cfg.Firebase, logg)
	return notifications.NewFirestoreRepository(fb), func() { _ = fb.Close() }, nil
}

func runResources(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resources", flag.ExitOnError)
	base, token := apiFlags(fs)
	var f resourceclient.Filter
	fs.StringVar(&f.Placement, "placement", "", "placement filter")
	fs.StringVar(&f.College, "college", "", "college filter")
	fs.StringVar(&f.Department, "department", "", "department filter")
	fs.StringVar(&f.Year, "year", "", "year filter")
	fs.StringVar(&f.Semester, "semester", "", "semester filter")
	fs.StringVar(&f.Course, "course", "", "course filter")
	_ = fs.Parse(args)

	items, err := resourceclient.New(newAPI(*base, *token)).List(ctx, f)
	if err != nil {
		return err
	}
	printJSON(items)
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	base, token := apiFlags(fs)
	id := fs.String("id", "", "resource id")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	out, err := resourceclient.New(newAPI(*base, *token)).GenerateSummary(ctx, *id)
	if err != nil {
		return err
	}
	printJSON(out)
	return nil
}

func runFlashcards(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("flashcards", flag.ExitOnError)
	base, token := apiFlags(fs)
	id := fs.String("id", "", "resource id")
	count := fs.Int("count", 10, "number of cards")
	_ = fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	cards, err := resourceclient.New(newAPI(*base, *token)).GenerateFlashcards(ctx, *id, *count)
	if err != nil {
		return err
	}
	printJSON(cards)
	return nil
}

func runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	base, token := apiFlags(fs)
	id := fs.String("id", "", "resource id")
	_ = fs.Parse(args)
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *id == "" || question == "" {
		return fmt.Errorf("usage: studyhub chat -id <resource> <question>")
	}

	answer, err := resourceclient.New(newAPI(*base, *token)).Chat(ctx, *id, question, nil)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func runInbox(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inbox", flag.ExitOnError)
	base, token := apiFlags(fs)
	user := fs.String("user", "", "uid the unread count is derived for")
	readAll := fs.Bool("read-all", false, "mark every notification read")
	_ = fs.Parse(args)
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	api := newAPI(*base, *token)
	var page struct {
		Items []models.Notification `json:"items"`
	}
	if err := api.Get(ctx, "/api/notifications", &page); err != nil {
		return err
	}

	var markErr error
	box := inbox.New(*user, inbox.NewHTTPReadMarker(api), func(err error) { markErr = err })
	box.Load(page.Items)
	if *readAll {
		box.MarkAllAsRead(ctx)
	}

	snap := box.Snapshot()
	printJSON(map[string]any{
		"unread":        snap.Unread,
		"notifications": snap.Notifications,
	})
	return markErr
}

func runPushToken(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("push-token", flag.ExitOnError)
	base, token := apiFlags(fs)
	device := fs.String("device", "", "FCM registration token")
	remove := fs.Bool("remove", false, "unregister the token instead")
	_ = fs.Parse(args)
	if *device == "" {
		return fmt.Errorf("-device is required")
	}

	reg := push.NewHTTPRegistrar(newAPI(*base, *token))
	if *remove {
		if err := reg.UnregisterToken(ctx, *device); err != nil {
			return err
		}
		printJSON(map[string]any{"removed": true})
		return nil
	}
	if err := reg.RegisterToken(ctx, *device); err != nil {
		return err
	}
	printJSON(map[string]any{"registered": true})
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

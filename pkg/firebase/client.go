// Package firebase owns the process-wide Firebase handles (Firestore, Cloud
// Messaging, Auth). Each handle is created on first use behind a mutex; a failed
// initialization is not cached, so the next call retries.
package firebase

import (
	"context"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"firebase.google.com/go/messaging"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
)

const remediationHint = "set STUDYHUB_FIREBASE_PROJECT_ID and either STUDYHUB_FIREBASE_CREDENTIALS_JSON or STUDYHUB_GOOGLE_APPLICATION_CREDENTIALS"

// Clients hands out lazily initialized Firebase service clients.
type Clients struct {
	cfg  config.FirebaseConfig
	logg *logger.Logger

	mu        sync.Mutex
	app       *fb.App
	firestore *firestore.Client
	messaging *messaging.Client
	auth      *auth.Client
}

// FirestoreProvider is satisfied by *Clients; repositories depend on it so the
// client is only created when a query first runs.
type FirestoreProvider interface {
	Firestore(ctx context.Context) (*firestore.Client, error)
}

// New returns an uninitialized handle set. No network calls are made.
func New(cfg config.FirebaseConfig, logg *logger.Logger) *Clients {
	return &Clients{cfg: cfg, logg: logg}
}

func (c *Clients) options() []option.ClientOption {
	switch {
	case strings.TrimSpace(c.cfg.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.cfg.CredentialsJSON))}
	case strings.TrimSpace(c.cfg.CredentialsFile) != "":
		return []option.ClientOption{option.WithCredentialsFile(c.cfg.CredentialsFile)}
	}
	return nil
}

// appLocked must be called with c.mu held.
func (c *Clients) appLocked(ctx context.Context) (*fb.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	if strings.TrimSpace(c.cfg.ProjectID) == "" && !c.cfg.HasCredentials() {
		return nil, configurationError(nil, "firebase credentials are not configured")
	}

	var fbCfg *fb.Config
	if c.cfg.ProjectID != "" {
		fbCfg = &fb.Config{ProjectID: c.cfg.ProjectID}
	}
	app, err := fb.NewApp(ctx, fbCfg, c.options()...)
	if err != nil {
		return nil, configurationError(err, "initializing firebase app")
	}
	c.app = app
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "project_id", c.cfg.ProjectID), "firebase app initialized")
	}
	return app, nil
}

// App returns the shared firebase app.
func (c *Clients) App(ctx context.Context) (*fb.App, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appLocked(ctx)
}

// Firestore returns the shared Firestore client.
func (c *Clients) Firestore(ctx context.Context) (*firestore.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore, nil
	}
	app, err := c.appLocked(ctx)
	if err != nil {
		return nil, err
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, configurationError(err, "initializing firestore client")
	}
	c.firestore = client
	return client, nil
}

// Messaging returns the shared Cloud Messaging client.
func (c *Clients) Messaging(ctx context.Context) (*messaging.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messaging != nil {
		return c.messaging, nil
	}
	app, err := c.appLocked(ctx)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, configurationError(err, "initializing messaging client")
	}
	c.messaging = client
	return client, nil
}

// Auth returns the shared Auth client.
func (c *Clients) Auth(ctx context.Context) (*auth.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth != nil {
		return c.auth, nil
	}
	app, err := c.appLocked(ctx)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, configurationError(err, "initializing auth client")
	}
	c.auth = client
	return client, nil
}

// SendMulticast delivers msg through Cloud Messaging.
func (c *Clients) SendMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	client, err := c.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return client.SendMulticast(ctx, msg)
}

// VerifyIDToken checks a Firebase ID token and returns its decoded form.
func (c *Clients) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	client, err := c.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return client.VerifyIDToken(ctx, idToken)
}

// Users iterates every Firebase Auth account.
func (c *Clients) Users(ctx context.Context) (*auth.UserIterator, error) {
	client, err := c.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return client.Users(ctx, ""), nil
}

// Diagnostics describes configuration state without exposing secrets.
type Diagnostics struct {
	ProjectID            string `json:"projectId"`
	HasCredentials       bool   `json:"hasCredentials"`
	CredentialSource     string `json:"credentialSource"`
	AppInitialized       bool   `json:"appInitialized"`
	FirestoreInitialized bool   `json:"firestoreInitialized"`
	MessagingInitialized bool   `json:"messagingInitialized"`
	AuthInitialized      bool   `json:"authInitialized"`
}

// Diagnostics reports which handles are configured and initialized.
func (c *Clients) Diagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()

	source := "application-default"
	switch {
	case strings.TrimSpace(c.cfg.CredentialsJSON) != "":
		source = "inline-json"
	case strings.TrimSpace(c.cfg.CredentialsFile) != "":
		source = "file"
	}

	return Diagnostics{
		ProjectID:            c.cfg.ProjectID,
		HasCredentials:       c.cfg.HasCredentials(),
		CredentialSource:     source,
		AppInitialized:       c.app != nil,
		FirestoreInitialized: c.firestore != nil,
		MessagingInitialized: c.messaging != nil,
		AuthInitialized:      c.auth != nil,
	}
}

// Close releases the Firestore connection and forgets every handle so the next
// accessor call starts over.
func (c *Clients) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.firestore != nil {
		err = multierr.Append(err, c.firestore.Close())
	}
	c.app, c.firestore, c.messaging, c.auth = nil, nil, nil, nil
	return err
}

func configurationError(cause error, msg string) error {
	details := map[string]string{"hint": remediationHint}
	if cause == nil {
		return pkgerrors.New(pkgerrors.CodeConfiguration, msg).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeConfiguration, cause, msg).WithDetails(details)
}

// Package cli implements phctl, a terminal client that signs in to the
// property-management backend and inspects what the signed-in role may do.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/propertyhub/propertyhub/internal/apiclient"
	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/session"
)

// options are the persistent flags shared by every command.
type options struct {
	serverURL   string
	sessionFile string
	timeout     time.Duration
	verbose     bool
}

// client is what a command acts through: the restored session and the
// resource client riding on it.
type client struct {
	store     *session.Store
	resources *apiclient.Resources
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the phctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "phctl",
		Short: "PropertyHub CLI - sign in and inspect role access",
		Long: `phctl talks to the PropertyHub backend on behalf of one user. It keeps the
access credential in a local file so later commands reuse the session.`,
		SilenceUsage: true,
	}

	defaultServer := os.Getenv("PROPERTYHUB_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8081"
	}
	root.PersistentFlags().StringVar(&opts.serverURL, "server", defaultServer, "Backend API URL (also PROPERTYHUB_SERVER)")
	root.PersistentFlags().StringVar(&opts.sessionFile, "session-file", "", "Credential file (default ~/.propertyhub/session.json)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	root.AddCommand(
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newCanCmd(opts),
		newNavCmd(opts),
		newGetCmd(opts),
		newDeleteCmd(opts),
	)
	return root
}

func (o *options) logger() *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *options) storage() (*session.FileStorage, error) {
	path := o.sessionFile
	if path == "" {
		var err error
		if path, err = session.DefaultFilePath(); err != nil {
			return nil, err
		}
	}
	return session.NewFileStorage(path)
}

// connect restores the saved session and wires the clients around it.
func (o *options) connect(ctx context.Context) (*client, error) {
	storage, err := o.storage()
	if err != nil {
		return nil, fmt.Errorf("open credential file: %w", err)
	}
	logger := o.logger()
	base := apiclient.NewTransport()
	auth, err := apiclient.NewAuthAPI(o.serverURL, base, nil, o.timeout)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(session.Options{
		Auth:    auth,
		Storage: storage,
		Decoder: credential.NewDecoder(time.Now),
		Logger:  logger,
	})
	httpClient := apiclient.NewHTTPClient(base, auth.Jar(), apiclient.PipelineOptions{
		Source:  store,
		Timeout: o.timeout,
		Logger:  logger,
	})
	resources, err := apiclient.NewResources(o.serverURL, httpClient)
	if err != nil {
		return nil, err
	}
	if err := store.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return &client{store: store, resources: resources}, nil
}

// signedIn connects and fails when no credential was saved or it has expired.
func (o *options) signedIn(ctx context.Context) (*client, error) {
	c, err := o.connect(ctx)
	if err != nil {
		return nil, err
	}
	if !c.store.Snapshot().Authenticated() {
		return nil, fmt.Errorf("not logged in (run phctl login)")
	}
	return c, nil
}

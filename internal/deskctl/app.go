// Package deskctl implements the operator CLI over the bookings and
// conflicts HTTP APIs.
package deskctl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roomdesk/pkg/client"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig       = "config"
	flagBookingsURL  = "bookings-url"
	flagConflictsURL = "conflicts-url"
	flagActor        = "actor"
	flagRole         = "role"
	flagOutput       = "output"
	flagTimeout      = "timeout"
)

// session is what every command needs: resolved settings and API clients.
type session struct {
	profile   Profile
	bookings  *client.BookingClient
	conflicts *client.ConflictClient
	out       io.Writer
}

func (s *session) render(v any) error {
	return Render(s.out, s.profile.Output, v)
}

func NewApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "deskctl",
		Usage:     "review room bookings and resolve conflicts",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "YAML profile path", EnvVars: []string{"DESKCTL_CONFIG"}},
			&cli.StringFlag{Name: flagBookingsURL, Usage: "bookings service base URL", EnvVars: []string{"DESKCTL_BOOKINGS_URL"}},
			&cli.StringFlag{Name: flagConflictsURL, Usage: "conflicts service base URL", EnvVars: []string{"DESKCTL_CONFLICTS_URL"}},
			&cli.StringFlag{Name: flagActor, Usage: "actor id sent as X-Actor-ID", EnvVars: []string{"DESKCTL_ACTOR"}},
			&cli.StringFlag{Name: flagRole, Usage: "actor role: requester, reviewer or admin", EnvVars: []string{"DESKCTL_ROLE"}},
			&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "output format: yaml or json"},
			&cli.DurationFlag{Name: flagTimeout, Usage: "per request timeout"},
		},
		Commands: []*cli.Command{
			bookingsCommand(),
			conflictsCommand(),
		},
	}
}

// newSession merges the profile file with the global flags. Flags win.
func newSession(c *cli.Context) (*session, error) {
	path, explicit := c.String(flagConfig), true
	if path == "" {
		path, explicit = defaultProfilePath(), false
	}
	profile, err := LoadProfile(path, explicit)
	if err != nil {
		return nil, err
	}

	overrideString(&profile.BookingsURL, c.String(flagBookingsURL))
	overrideString(&profile.ConflictsURL, c.String(flagConflictsURL))
	overrideString(&profile.ActorID, c.String(flagActor))
	overrideString(&profile.ActorRole, c.String(flagRole))
	overrideString(&profile.Output, strings.ToLower(c.String(flagOutput)))
	if d := c.Duration(flagTimeout); d > 0 {
		profile.Timeout = d
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if profile.ActorID == "" {
		return nil, fmt.Errorf("an actor is required, use --%s or actor_id in the profile", flagActor)
	}

	return &session{
		profile:   profile,
		bookings:  client.NewBookingClient(newHTTPClient(profile.BookingsURL, profile)),
		conflicts: client.NewConflictClient(newHTTPClient(profile.ConflictsURL, profile)),
		out:       c.App.Writer,
	}, nil
}

func newHTTPClient(baseURL string, p Profile) *client.HttpClient {
	hc := client.NewHttpClient(strings.TrimRight(baseURL, "/"))
	hc.HTTPClient = &http.Client{Timeout: p.Timeout}
	return hc.WithActor(p.ActorID, p.ActorRole)
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// action wraps a command body with session setup and a cancellable context.
func action(run func(ctx context.Context, c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		ctx := c.Context
		if ctx == nil {
			ctx = context.Background()
		}
		return run(ctx, c, s)
	}
}

func requireArg(c *cli.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return v, nil
}

func parseTimeFlag(c *cli.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.String(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC3339, e.g. 2026-01-02T15:04:05Z: %w", name, err)
	}
	return &t, nil
}

package deskctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomdesk/pkg/model"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func conflictsCommand() *cli.Command {
	return &cli.Command{
		Name:    "conflicts",
		Aliases: []string{"x"},
		Usage:   "inspect and resolve conflict groups",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "pending conflict groups",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "resource"},
				},
				Action: action(func(ctx context.Context, c *cli.Context, s *session) error {
					result, err := s.conflicts.List(ctx, c.String("resource"))
					if err != nil {
						return err
					}
					return s.render(result)
				}),
			},
			{
				Name:      "resolve",
				Usage:     "approve one member of a group or reject all of them",
				ArgsUsage: "CONFLICT_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "approve", Usage: "booking id to approve"},
					&cli.BoolFlag{Name: "reject-all"},
					&cli.StringFlag{Name: "resource", Usage: "resource the group belongs to, limits the server-side regroup"},
					&cli.StringFlag{Name: "reason", Required: true, Usage: "reason recorded on rejected bookings"},
					&cli.StringFlag{Name: "idempotency-key", Usage: "defaults to a fresh UUID"},
				},
				Action: action(resolveConflict),
			},
			{
				Name:  "resolved",
				Usage: "resolutions recorded on a calendar day",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "YYYY-MM-DD, defaults to today"},
				},
				Action: action(func(ctx context.Context, c *cli.Context, s *session) error {
					var day time.Time
					if raw := c.String("date"); raw != "" {
						parsed, err := time.Parse(time.DateOnly, raw)
						if err != nil {
							return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
						}
						day = parsed
					}
					resolutions, err := s.conflicts.ResolvedOn(ctx, day)
					if err != nil {
						return err
					}
					if resolutions == nil {
						resolutions = []*model.ConflictResolution{}
					}
					return s.render(resolutions)
				}),
			},
			{
				Name:  "stats",
				Usage: "conflict statistics snapshot",
				Action: action(func(ctx context.Context, _ *cli.Context, s *session) error {
					stats, err := s.conflicts.Stats(ctx)
					if err != nil {
						return err
					}
					return s.render(stats)
				}),
			},
		},
	}
}

// resolutionCommand builds the request from the resolve flags.
func resolutionCommand(conflictID, approveID string, rejectAll bool, reason string) (*model.ResolutionCommand, error) {
	switch {
	case approveID != "" && rejectAll:
		return nil, errors.New("--approve and --reject-all are mutually exclusive")
	case approveID != "":
		return &model.ResolutionCommand{
			ConflictID:      conflictID,
			Action:          model.ActionApprove,
			ChosenBookingID: approveID,
			RejectionReason: reason,
		}, nil
	case rejectAll:
		return &model.ResolutionCommand{
			ConflictID:      conflictID,
			Action:          model.ActionRejectAll,
			RejectionReason: reason,
		}, nil
	default:
		return nil, errors.New("one of --approve BOOKING_ID or --reject-all is required")
	}
}

func resolveConflict(ctx context.Context, c *cli.Context, s *session) error {
	conflictID, err := requireArg(c, "CONFLICT_ID")
	if err != nil {
		return err
	}
	cmd, err := resolutionCommand(conflictID, c.String("approve"), c.Bool("reject-all"), c.String("reason"))
	if err != nil {
		return err
	}
	cmd.ResourceID = c.String("resource")

	key := c.String("idempotency-key")
	if key == "" {
		key = uuid.NewString()
	}
	result, err := s.conflicts.Resolve(ctx, cmd, key)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", conflictID, err)
	}
	return s.render(result)
}

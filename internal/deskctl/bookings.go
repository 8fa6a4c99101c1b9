package deskctl

import (
	"context"
	"errors"
	"fmt"

	"roomdesk/pkg/client"
	"roomdesk/pkg/model"

	"github.com/urfave/cli/v2"
)

func bookingsCommand() *cli.Command {
	return &cli.Command{
		Name:    "bookings",
		Aliases: []string{"b"},
		Usage:   "list, inspect and decide bookings",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list bookings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
					&cli.StringFlag{Name: "requester"},
					&cli.StringFlag{Name: "q", Usage: "text search"},
					&cli.StringFlag{Name: "sort", Usage: "start, created or title; prefix - for descending"},
					&cli.IntFlag{Name: "limit", Value: 20},
					&cli.Int64Flag{Name: "offset"},
				},
				Action: action(listBookings),
			},
			{
				Name:      "get",
				Usage:     "show one booking",
				ArgsUsage: "BOOKING_ID",
				Action: action(func(ctx context.Context, c *cli.Context, s *session) error {
					id, err := requireArg(c, "BOOKING_ID")
					if err != nil {
						return err
					}
					booking, err := s.bookings.GetByID(ctx, id)
					if err != nil {
						return err
					}
					return s.render(booking)
				}),
			},
			{
				Name:  "search",
				Usage: "bookings of one resource within a time window",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "resource", Required: true},
					&cli.StringFlag{Name: "from", Usage: "RFC3339"},
					&cli.StringFlag{Name: "to", Usage: "RFC3339"},
					&cli.IntFlag{Name: "limit", Value: 20},
					&cli.Int64Flag{Name: "offset"},
				},
				Action: action(searchBookings),
			},
			{
				Name:  "create",
				Usage: "submit a booking request",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "resource", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "justification", Required: true},
					&cli.StringFlag{Name: "notes"},
					&cli.StringFlag{Name: "start", Required: true, Usage: "RFC3339"},
					&cli.StringFlag{Name: "end", Required: true, Usage: "RFC3339"},
					&cli.StringSliceFlag{Name: "requested", Usage: "additional resource, repeatable"},
					&cli.StringFlag{Name: "requester", Usage: "submit on behalf of another requester"},
				},
				Action: action(createBooking),
			},
			{
				Name:      "decide",
				Usage:     "approve or reject a booking outside any conflict",
				ArgsUsage: "BOOKING_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "approve"},
					&cli.BoolFlag{Name: "reject"},
					&cli.StringFlag{Name: "reason"},
					&cli.StringFlag{Name: "idempotency-key"},
				},
				Action: action(decideBooking),
			},
			{
				Name:      "cancel",
				Usage:     "cancel a booking",
				ArgsUsage: "BOOKING_ID",
				Action: action(func(ctx context.Context, c *cli.Context, s *session) error {
					id, err := requireArg(c, "BOOKING_ID")
					if err != nil {
						return err
					}
					booking, err := s.bookings.Cancel(ctx, id)
					if err != nil {
						return err
					}
					return s.render(booking)
				}),
			},
			{
				Name:      "delete",
				Usage:     "delete a booking",
				ArgsUsage: "BOOKING_ID",
				Action: action(func(ctx context.Context, c *cli.Context, s *session) error {
					id, err := requireArg(c, "BOOKING_ID")
					if err != nil {
						return err
					}
					if err := s.bookings.Delete(ctx, id); err != nil {
						return err
					}
					return s.render(map[string]string{"deleted": id})
				}),
			},
		},
	}
}

type page struct {
	Items  []*model.Booking `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int64            `json:"offset"`
}

func newPage(items []*model.Booking, meta *client.Metadata) page {
	p := page{Items: items}
	if p.Items == nil {
		p.Items = []*model.Booking{}
	}
	if meta != nil {
		p.Total, p.Limit, p.Offset = meta.TotalCount, meta.Limit, meta.Offset
	}
	return p
}

func listBookings(ctx context.Context, c *cli.Context, s *session) error {
	bookings, meta, err := s.bookings.GetAll(ctx, client.BookingListQuery{
		Status:      c.String("status"),
		RequesterID: c.String("requester"),
		Text:        c.String("q"),
		Sort:        c.String("sort"),
		Limit:       c.Int("limit"),
		Offset:      c.Int64("offset"),
	})
	if err != nil {
		return err
	}
	return s.render(newPage(bookings, meta))
}

func searchBookings(ctx context.Context, c *cli.Context, s *session) error {
	from, err := parseTimeFlag(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeFlag(c, "to")
	if err != nil {
		return err
	}
	bookings, meta, err := s.bookings.Search(ctx, c.String("resource"), from, to, c.Int("limit"), c.Int64("offset"))
	if err != nil {
		return err
	}
	return s.render(newPage(bookings, meta))
}

func createBooking(ctx context.Context, c *cli.Context, s *session) error {
	start, err := parseTimeFlag(c, "start")
	if err != nil {
		return err
	}
	end, err := parseTimeFlag(c, "end")
	if err != nil {
		return err
	}
	booking := &model.Booking{
		ResourceID:         c.String("resource"),
		RequesterID:        c.String("requester"),
		Title:              c.String("title"),
		Justification:      c.String("justification"),
		Notes:              c.String("notes"),
		StartTime:          *start,
		EndTime:            *end,
		RequestedResources: c.StringSlice("requested"),
	}
	created, err := s.bookings.Create(ctx, booking)
	if err != nil {
		return err
	}
	return s.render(created)
}

func decideBooking(ctx context.Context, c *cli.Context, s *session) error {
	id, err := requireArg(c, "BOOKING_ID")
	if err != nil {
		return err
	}
	approve, reject := c.Bool("approve"), c.Bool("reject")
	if approve == reject {
		return errors.New("exactly one of --approve or --reject is required")
	}
	req := client.DecisionRequest{Decision: string(model.DecisionApprove), Reason: c.String("reason")}
	if reject {
		req.Decision = string(model.DecisionReject)
	}

	booking, err := s.bookings.Decide(ctx, id, req, c.String("idempotency-key"))
	if err != nil {
		return fmt.Errorf("decide %s: %w", id, err)
	}
	return s.render(booking)
}

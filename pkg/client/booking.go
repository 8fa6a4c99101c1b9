package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"roomdesk/pkg/model"
)

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(httpClient *HttpClient) *BookingClient {
	return &BookingClient{httpClient: httpClient}
}

// BookingListQuery mirrors the list endpoint filters.
type BookingListQuery struct {
	Status      string
	RequesterID string
	Text        string
	Sort        string
	Limit       int
	Offset      int64
}

type DecisionRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

func (c *BookingClient) Create(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings", booking)
	if err != nil {
		return nil, err
	}
	var created model.Booking
	if _, err := decodeData(resp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *BookingClient) GetAll(ctx context.Context, q BookingListQuery) ([]*model.Booking, *Metadata, error) {
	values := url.Values{}
	setIf(values, "status", q.Status)
	setIf(values, "requester_id", q.RequesterID)
	setIf(values, "q", q.Text)
	setIf(values, "sort", q.Sort)
	values.Set("limit", fmt.Sprintf("%d", q.Limit))
	values.Set("offset", fmt.Sprintf("%d", q.Offset))

	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings?"+values.Encode())
	if err != nil {
		return nil, nil, err
	}
	var bookings []*model.Booking
	meta, err := decodeData(resp, &bookings)
	if err != nil {
		return nil, nil, err
	}
	return bookings, meta, nil
}

func (c *BookingClient) Search(ctx context.Context, resourceID string, start, end *time.Time, limit int, offset int64) ([]*model.Booking, *Metadata, error) {
	values := url.Values{}
	values.Set("resource_id", resourceID)
	if start != nil {
		values.Set("start_time", start.Format(time.RFC3339))
	}
	if end != nil {
		values.Set("end_time", end.Format(time.RFC3339))
	}
	values.Set("limit", fmt.Sprintf("%d", limit))
	values.Set("offset", fmt.Sprintf("%d", offset))

	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/search?"+values.Encode())
	if err != nil {
		return nil, nil, err
	}
	var bookings []*model.Booking
	meta, err := decodeData(resp, &bookings)
	if err != nil {
		return nil, nil, err
	}
	return bookings, meta, nil
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/id/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var booking model.Booking
	if _, err := decodeData(resp, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BookingClient) Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	resp, err := c.httpClient.PATCH(ctx, "/api/v1/bookings/id/"+url.PathEscape(id), update)
	if err != nil {
		return nil, err
	}
	var booking model.Booking
	if _, err := decodeData(resp, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BookingClient) Decide(ctx context.Context, id string, req DecisionRequest, idempotencyKey string) (*model.Booking, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[HeaderIdemKey] = idempotencyKey
	}
	resp, err := c.httpClient.POSTWithHeaders(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/decision", req, headers)
	if err != nil {
		return nil, err
	}
	var booking model.Booking
	if _, err := decodeData(resp, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BookingClient) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/cancel", struct{}{})
	if err != nil {
		return nil, err
	}
	var booking model.Booking
	if _, err := decodeData(resp, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BookingClient) Delete(ctx context.Context, id string) error {
	resp, err := c.httpClient.DELETE(ctx, "/api/v1/bookings/id/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return ErrorFrom(resp)
}

func setIf(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

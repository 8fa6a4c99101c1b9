package client

import (
	"context"
	"net/url"
	"time"

	"roomdesk/pkg/model"
)

type ConflictClient struct {
	httpClient *HttpClient
}

func NewConflictClient(httpClient *HttpClient) *ConflictClient {
	return &ConflictClient{httpClient: httpClient}
}

func (c *ConflictClient) List(ctx context.Context, resourceID string) (*model.GroupingResult, error) {
	path := "/api/v1/conflicts"
	if resourceID != "" {
		path += "?" + url.Values{"resource_id": {resourceID}}.Encode()
	}
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, err
	}
	var result model.GroupingResult
	if _, err := decodeData(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ConflictClient) Resolve(ctx context.Context, cmd *model.ResolutionCommand, idempotencyKey string) (*model.ResolutionResult, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[HeaderIdemKey] = idempotencyKey
	}
	resp, err := c.httpClient.POSTWithHeaders(ctx, "/api/v1/conflicts/resolve", cmd, headers)
	if err != nil {
		return nil, err
	}
	var result model.ResolutionResult
	if _, err := decodeData(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResolvedOn lists resolutions for a local calendar day. A zero day means today.
func (c *ConflictClient) ResolvedOn(ctx context.Context, day time.Time) ([]*model.ConflictResolution, error) {
	path := "/api/v1/conflicts/resolved"
	if !day.IsZero() {
		path += "?" + url.Values{"date": {day.Format(time.DateOnly)}}.Encode()
	}
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, err
	}
	var resolutions []*model.ConflictResolution
	if _, err := decodeData(resp, &resolutions); err != nil {
		return nil, err
	}
	return resolutions, nil
}

func (c *ConflictClient) Stats(ctx context.Context) (*model.ConflictStats, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/conflicts/stats")
	if err != nil {
		return nil, err
	}
	var stats model.ConflictStats
	if _, err := decodeData(resp, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

package supersoniks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
	"golang.org/x/time/rate"
)

// Supersoniks instances live under per-customer domains; the access key is
// the instance slug and the secret key a bearer token for its API.
const baseURLPattern = "https://%s.supersoniks.com/api"

// Supersoniks reports series touched since a date, so the fetch window is
// widened backwards by a fixed horizon and forwards to catch future events
// modified recently.
const (
	lookBackMonths  = 13
	lookAheadMonths = 18
)

const requestInterval = 500 * time.Millisecond

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(accessKey, secretKey string, timeout time.Duration) *Client {
	return NewClientWithHTTP(secretKey, fmt.Sprintf(baseURLPattern, accessKey), &http.Client{Timeout: timeout})
}

// NewClientWithHTTP is used by tests to point the client at a local server.
func NewClientWithHTTP(token, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// --- Supersoniks wire shapes ---

// The synchro endpoint returns fully hydrated series in one response, with
// Unix timestamps and unit prices in cents.

type ssSerie struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	TaxRate  float64     `json:"tax_rate"`
	Events   []ssEvent   `json:"events"`
	Prices   []ssPrice   `json:"prices"`
	Counters []ssCounter `json:"counters"`
}

type ssEvent struct {
	ID        int64 `json:"id"`
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
}

type ssPrice struct {
	ID          int64   `json:"id"`
	Label       string  `json:"label"`
	Description *string `json:"description"`
	AmountCents int     `json:"amount_cents"`
}

type ssCounter struct {
	EventID int64 `json:"event_id"`
	PriceID int64 `json:"price_id"`
	Sold    int   `json:"sold"`
}

type ssSynchroResponse struct {
	Success bool      `json:"success"`
	Series  []ssSerie `json:"series"`
}

// APIError carries a non-2xx Supersoniks response as-is.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supersoniks: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("supersoniks: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("supersoniks: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supersoniks: %s: %w", path, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("supersoniks: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("supersoniks: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	var response ssSynchroResponse
	err := c.post(ctx, "/synchro/ping", map[string]any{}, &response)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	return response.Success, nil
}

func (c *Client) GetEventsSeries(ctx context.Context, fromDate time.Time, toDate *time.Time) ([]models.EventSerieWrapper, error) {
	windowStart := fromDate.AddDate(0, -lookBackMonths, 0)
	windowEnd := fromDate.AddDate(0, lookAheadMonths, 0)
	if toDate != nil {
		windowEnd = toDate.AddDate(0, lookAheadMonths, 0)
	}

	payload := map[string]any{
		"modified_from": windowStart.Unix(),
		"modified_to":   windowEnd.Unix(),
	}

	var response ssSynchroResponse
	if err := c.post(ctx, "/synchro/events", payload, &response); err != nil {
		return nil, err
	}

	wrappers := make([]models.EventSerieWrapper, 0, len(response.Series))
	for _, serie := range response.Series {
		wrappers = append(wrappers, translateSerie(serie))
	}
	return wrappers, nil
}

func translateSerie(serie ssSerie) models.EventSerieWrapper {
	serieID := fmt.Sprintf("%d", serie.ID)

	wrapper := models.EventSerieWrapper{
		Serie: models.LiteEventSerie{
			TicketingSystemID: serieID,
			Name:              serie.Title,
			TaxRate:           serie.TaxRate,
		},
	}

	for _, event := range serie.Events {
		wrapper.Events = append(wrapper.Events, models.LiteEvent{
			TicketingSystemID: fmt.Sprintf("%d", event.ID),
			StartAt:           time.Unix(event.StartTime, 0).UTC(),
			EndAt:             time.Unix(event.EndTime, 0).UTC(),
		})
	}

	// The serie window is derived from its events; Supersoniks has no
	// series-level dates of its own.
	if len(wrapper.Events) > 0 {
		wrapper.Serie.StartAt = wrapper.Events[0].StartAt
		wrapper.Serie.EndAt = wrapper.Events[0].EndAt
		for _, event := range wrapper.Events {
			if event.StartAt.Before(wrapper.Serie.StartAt) {
				wrapper.Serie.StartAt = event.StartAt
			}
			if event.EndAt.After(wrapper.Serie.EndAt) {
				wrapper.Serie.EndAt = event.EndAt
			}
		}
	}

	for _, price := range serie.Prices {
		wrapper.TicketCategories = append(wrapper.TicketCategories, models.LiteTicketCategory{
			TicketingSystemID: fmt.Sprintf("%d", price.ID),
			Name:              price.Label,
			Description:       price.Description,
			Price:             float64(price.AmountCents) / 100,
		})
	}

	for _, counter := range serie.Counters {
		wrapper.Sales = append(wrapper.Sales, models.LiteSalesRecord{
			EventTicketingSystemID:          fmt.Sprintf("%d", counter.EventID),
			TicketCategoryTicketingSystemID: fmt.Sprintf("%d", counter.PriceID),
			Total:                           counter.Sold,
		})
	}

	return wrapper
}

package billetweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.billetweb.fr/api"

// Billetweb filters on last modification date, not event date. The first
// sync cannot retroactively exceed this horizon, so the window is widened
// backwards by a fixed amount and forwards to catch freshly modified future
// events. Kept as named constants, not caller parameters.
const (
	lookBackMonths  = 13
	lookAheadMonths = 12
)

// One request in flight at a time, spaced out to stay far from Billetweb's
// rate limit.
const requestInterval = 200 * time.Millisecond

type Client struct {
	baseURL    string
	user       string
	key        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client for one connection. The access key is the
// Billetweb API "user", the secret key its companion API key, both sent as
// query parameters on every call.
func NewClient(accessKey, secretKey string, timeout time.Duration) *Client {
	return NewClientWithHTTP(accessKey, secretKey, defaultBaseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP is used by tests to point the client at a local server.
func NewClientWithHTTP(accessKey, secretKey, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		user:       accessKey,
		key:        secretKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// --- Billetweb wire shapes ---

// bwEvent is what Billetweb calls an "event"; it maps to our event serie.
type bwEvent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Start   string `json:"start"`
	End     string `json:"end"`
	TaxRate string `json:"tax_rate"`
}

// bwDate is one dated session of an event.
type bwDate struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// bwProduct is a priced ticket category.
type bwProduct struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       string  `json:"price"`
}

// bwAttendee is one sold ticket; sales facts are aggregated from these.
type bwAttendee struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("user", c.user)
	params.Set("key", c.key)
	params.Set("version", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("billetweb: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billetweb: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("billetweb: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The JSON body is the provider's error payload; surface it as-is.
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("billetweb: decode %s response: %w", path, err)
	}
	return nil
}

// APIError carries a non-2xx Billetweb response as-is.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billetweb: unexpected status %d: %s", e.StatusCode, e.Body)
}

// TestConnection fetches the event list with a minimal window. Authentication
// rejections are reported as a boolean, not an error.
func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	var events []bwEvent
	err := c.get(ctx, "/events", url.Values{"past": []string{"0"}}, &events)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) GetEventsSeries(ctx context.Context, fromDate time.Time, toDate *time.Time) ([]models.EventSerieWrapper, error) {
	windowStart := fromDate.AddDate(0, -lookBackMonths, 0)
	windowEnd := fromDate.AddDate(0, lookAheadMonths, 0)
	if toDate != nil {
		windowEnd = toDate.AddDate(0, lookAheadMonths, 0)
	}

	listParams := url.Values{
		"past": []string{"1"},
	}
	listParams.Set("modification_date_from", windowStart.Format("2006-01-02"))
	listParams.Set("modification_date_to", windowEnd.Format("2006-01-02"))

	var events []bwEvent
	if err := c.get(ctx, "/events", listParams, &events); err != nil {
		return nil, err
	}

	wrappers := make([]models.EventSerieWrapper, 0, len(events))
	for _, event := range events {
		wrapper, err := c.hydrateEvent(ctx, event)
		if err != nil {
			return nil, err
		}
		wrappers = append(wrappers, wrapper)
	}
	return wrappers, nil
}

// hydrateEvent walks the per-event detail endpoints one at a time.
func (c *Client) hydrateEvent(ctx context.Context, event bwEvent) (models.EventSerieWrapper, error) {
	startAt, err := parseBilletwebTime(event.Start)
	if err != nil {
		return models.EventSerieWrapper{}, fmt.Errorf("billetweb: event %s: %w", event.ID, err)
	}
	endAt, err := parseBilletwebTime(event.End)
	if err != nil {
		return models.EventSerieWrapper{}, fmt.Errorf("billetweb: event %s: %w", event.ID, err)
	}
	taxRate, err := strconv.ParseFloat(event.TaxRate, 64)
	if err != nil {
		return models.EventSerieWrapper{}, fmt.Errorf("billetweb: event %s: invalid tax rate %q: %w", event.ID, event.TaxRate, err)
	}

	wrapper := models.EventSerieWrapper{
		Serie: models.LiteEventSerie{
			TicketingSystemID: event.ID,
			Name:              event.Name,
			StartAt:           startAt,
			EndAt:             endAt,
			TaxRate:           taxRate / 100,
		},
	}

	var dates []bwDate
	if err := c.get(ctx, "/event/"+event.ID+"/dates", url.Values{}, &dates); err != nil {
		return models.EventSerieWrapper{}, err
	}
	for _, date := range dates {
		dateStart, err := parseBilletwebTime(date.Start)
		if err != nil {
			return models.EventSerieWrapper{}, fmt.Errorf("billetweb: event %s date %s: %w", event.ID, date.ID, err)
		}
		dateEnd, err := parseBilletwebTime(date.End)
		if err != nil {
			return models.EventSerieWrapper{}, fmt.Errorf("billetweb: event %s date %s: %w", event.ID, date.ID, err)
		}
		wrapper.Events = append(wrapper.Events, models.LiteEvent{
			TicketingSystemID: date.ID,
			StartAt:           dateStart,
			EndAt:             dateEnd,
		})
	}
	// Single-session events have no dates entries; the event itself is the
	// only session then.
	if len(dates) == 0 {
		wrapper.Events = append(wrapper.Events, models.LiteEvent{
			TicketingSystemID: event.ID,
			StartAt:           startAt,
			EndAt:             endAt,
		})
	}

	var products []bwProduct
	if err := c.get(ctx, "/event/"+event.ID+"/products", url.Values{}, &products); err != nil {
		return models.EventSerieWrapper{}, err
	}
	for _, product := range products {
		price, err := strconv.ParseFloat(product.Price, 64)
		if err != nil {
			return models.EventSerieWrapper{}, fmt.Errorf("billetweb: event %s product %s: invalid price %q: %w", event.ID, product.ID, product.Price, err)
		}
		wrapper.TicketCategories = append(wrapper.TicketCategories, models.LiteTicketCategory{
			TicketingSystemID: product.ID,
			Name:              product.Name,
			Description:       product.Description,
			Price:             price,
		})
	}

	var attendees []bwAttendee
	if err := c.get(ctx, "/event/"+event.ID+"/attendees", url.Values{}, &attendees); err != nil {
		return models.EventSerieWrapper{}, err
	}
	wrapper.Sales = aggregateAttendees(attendees, event.ID)

	return wrapper, nil
}

// aggregateAttendees folds individual sold tickets into per (session, product)
// sales facts, ordered deterministically.
func aggregateAttendees(attendees []bwAttendee, fallbackSessionID string) []models.LiteSalesRecord {
	type salesKey struct {
		sessionID string
		productID string
	}
	totals := make(map[salesKey]int)
	var order []salesKey
	for _, attendee := range attendees {
		sessionID := attendee.SessionID
		if sessionID == "" {
			sessionID = fallbackSessionID
		}
		key := salesKey{sessionID: sessionID, productID: attendee.ProductID}
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key]++
	}

	sales := make([]models.LiteSalesRecord, 0, len(order))
	for _, key := range order {
		sales = append(sales, models.LiteSalesRecord{
			EventTicketingSystemID:          key.sessionID,
			TicketCategoryTicketingSystemID: key.productID,
			Total:                           totals[key],
		})
	}
	return sales
}

func parseBilletwebTime(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse billetweb datetime '%s': %w", value, err)
	}
	return t.UTC(), nil
}

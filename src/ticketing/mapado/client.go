package mapado

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

const defaultBaseURL = "https://ticketing.mapado.net/v1"

// Mapado exposes a "last updated" filter rather than an event-date filter,
// so the window is widened with fixed bounds around the requested dates.
const (
	lookBackMonths  = 13
	lookAheadMonths = 6
)

const itemsPerPage = 100

const requestInterval = 250 * time.Millisecond

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client for one connection. Mapado only needs the secret
// key (a long-lived bearer token); the access key slot is unused for this
// provider but kept in the contract so the factory stays uniform.
func NewClient(_ string, secretKey string, timeout time.Duration) *Client {
	return NewClientWithHTTP(secretKey, defaultBaseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP is used by tests to point the client at a local server.
func NewClientWithHTTP(token, baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// --- Mapado wire shapes (hydra collections) ---

type mpCollection[T any] struct {
	Members    []T `json:"hydra:member"`
	TotalItems int `json:"hydra:totalItems"`
}

type mpEventFamily struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	TaxRate   float64 `json:"taxRate"`
}

type mpEvent struct {
	ID        int64  `json:"id"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type mpTicketPrice struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	// faceValue is expressed in cents.
	FaceValue int `json:"faceValue"`
}

type mpSalesEntry struct {
	EventID       int64 `json:"eventId"`
	TicketPriceID int64 `json:"ticketPriceId"`
	Quantity      int   `json:"quantity"`
}

// APIError carries a non-2xx Mapado response as-is.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mapado: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("mapado: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/ld+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mapado: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mapado: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("mapado: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	params := url.Values{}
	params.Set("itemsPerPage", "1")
	params.Set("page", "1")

	var families mpCollection[mpEventFamily]
	err := c.get(ctx, "/event_families", params, &families)
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

	families, err := c.listEventFamilies(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	wrappers := make([]models.EventSerieWrapper, 0, len(families))
	for _, family := range families {
		wrapper, err := c.hydrateFamily(ctx, family)
		if err != nil {
			return nil, err
		}
		wrappers = append(wrappers, wrapper)
	}
	return wrappers, nil
}

func (c *Client) listEventFamilies(ctx context.Context, windowStart, windowEnd time.Time) ([]mpEventFamily, error) {
	params := url.Values{}
	params.Set("updatedAt[after]", windowStart.Format(time.RFC3339))
	params.Set("updatedAt[before]", windowEnd.Format(time.RFC3339))
	return listAll[mpEventFamily](ctx, c, "/event_families", params)
}

// listAll walks a paginated hydra collection until exhaustion. Every Mapado
// collection is paginated, child collections of a large family included.
func listAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var members []T
	for page := 1; ; page++ {
		pageParams := url.Values{}
		for key, values := range params {
			pageParams[key] = values
		}
		pageParams.Set("itemsPerPage", strconv.Itoa(itemsPerPage))
		pageParams.Set("page", strconv.Itoa(page))

		var collection mpCollection[T]
		if err := c.get(ctx, path, pageParams, &collection); err != nil {
			return nil, err
		}
		members = append(members, collection.Members...)
		if len(members) >= collection.TotalItems || len(collection.Members) == 0 {
			break
		}
	}
	return members, nil
}

func (c *Client) hydrateFamily(ctx context.Context, family mpEventFamily) (models.EventSerieWrapper, error) {
	startAt, err := parseMapadoTime(family.StartDate)
	if err != nil {
		return models.EventSerieWrapper{}, fmt.Errorf("mapado: event family %d: %w", family.ID, err)
	}
	endAt, err := parseMapadoTime(family.EndDate)
	if err != nil {
		return models.EventSerieWrapper{}, fmt.Errorf("mapado: event family %d: %w", family.ID, err)
	}

	familyID := strconv.FormatInt(family.ID, 10)
	wrapper := models.EventSerieWrapper{
		Serie: models.LiteEventSerie{
			TicketingSystemID: familyID,
			Name:              family.Title,
			StartAt:           startAt,
			EndAt:             endAt,
			TaxRate:           family.TaxRate,
		},
	}

	familyParams := url.Values{}
	familyParams.Set("eventFamily", familyID)

	events, err := listAll[mpEvent](ctx, c, "/events", familyParams)
	if err != nil {
		return models.EventSerieWrapper{}, err
	}
	for _, event := range events {
		eventStart, err := parseMapadoTime(event.StartDate)
		if err != nil {
			return models.EventSerieWrapper{}, fmt.Errorf("mapado: event %d: %w", event.ID, err)
		}
		eventEnd, err := parseMapadoTime(event.EndDate)
		if err != nil {
			return models.EventSerieWrapper{}, fmt.Errorf("mapado: event %d: %w", event.ID, err)
		}
		wrapper.Events = append(wrapper.Events, models.LiteEvent{
			TicketingSystemID: strconv.FormatInt(event.ID, 10),
			StartAt:           eventStart,
			EndAt:             eventEnd,
		})
	}

	prices, err := listAll[mpTicketPrice](ctx, c, "/ticket_prices", familyParams)
	if err != nil {
		return models.EventSerieWrapper{}, err
	}
	for _, price := range prices {
		wrapper.TicketCategories = append(wrapper.TicketCategories, models.LiteTicketCategory{
			TicketingSystemID: strconv.FormatInt(price.ID, 10),
			Name:              price.Name,
			Description:       price.Description,
			Price:             float64(price.FaceValue) / 100,
		})
	}

	sales, err := listAll[mpSalesEntry](ctx, c, "/ticket_sales_stats", familyParams)
	if err != nil {
		return models.EventSerieWrapper{}, err
	}
	for _, entry := range sales {
		wrapper.Sales = append(wrapper.Sales, models.LiteSalesRecord{
			EventTicketingSystemID:          strconv.FormatInt(entry.EventID, 10),
			TicketCategoryTicketingSystemID: strconv.FormatInt(entry.TicketPriceID, 10),
			Total:                           entry.Quantity,
		})
	}

	return wrapper, nil
}

func parseMapadoTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse mapado datetime '%s': %w", value, err)
	}
	return t.UTC(), nil
}

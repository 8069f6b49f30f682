package ticketing

import (
	"context"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
)

// Client is the contract every ticketing system implementation satisfies.
type Client interface {
	// TestConnection performs a minimal authenticated request. It returns
	// false when the provider rejects the credentials, so callers can show an
	// "invalid credentials" state without treating it as a system fault.
	// Network failures unrelated to authentication are returned as errors.
	TestConnection(ctx context.Context) (bool, error)

	// GetEventsSeries fetches every event series the provider considers
	// relevant to the window, fully hydrated with events, ticket categories
	// and sales facts. Providers report activity by "last modified", so each
	// implementation widens the window with its own named constants; the
	// bounds are not caller parameters.
	GetEventsSeries(ctx context.Context, fromDate time.Time, toDate *time.Time) ([]models.EventSerieWrapper, error)
}

package ticketing

import (
	"fmt"
	"slices"
	"time"

	"github.com/betagouv/assistant-declaration/src/ticketing/billetweb"
	"github.com/betagouv/assistant-declaration/src/ticketing/mapado"
	"github.com/betagouv/assistant-declaration/src/ticketing/mock"
	"github.com/betagouv/assistant-declaration/src/ticketing/supersoniks"
)

// Provider names as stored on ticketing connections.
const (
	ProviderBilletweb   = "billetweb"
	ProviderMapado      = "mapado"
	ProviderSupersoniks = "supersoniks"
)

// FactorySettings controls the test/staging safety valve: when UseMock is on,
// every user gets the deterministic mock client except those explicitly
// deny-listed (so real integrations stay testable by the team).
type FactorySettings struct {
	UseMock            bool
	MockExcludedEmails []string

	// HTTPTimeout bounds every request a built client issues.
	HTTPTimeout time.Duration
}

// GetClient selects the implementation for the configured provider. An
// unknown provider name is a configuration error, never retried.
func GetClient(provider, accessKey, secretKey, userEmail string, settings FactorySettings) (Client, error) {
	if settings.UseMock && !slices.Contains(settings.MockExcludedEmails, userEmail) {
		return mock.NewClient(), nil
	}

	switch provider {
	case ProviderBilletweb:
		return billetweb.NewClient(accessKey, secretKey, settings.HTTPTimeout), nil
	case ProviderMapado:
		return mapado.NewClient(accessKey, secretKey, settings.HTTPTimeout), nil
	case ProviderSupersoniks:
		return supersoniks.NewClient(accessKey, secretKey, settings.HTTPTimeout), nil
	default:
		return nil, fmt.Errorf("no ticketing client available for provider: %s", provider)
	}
}

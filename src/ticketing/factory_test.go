package ticketing

import (
	"testing"

	"github.com/betagouv/assistant-declaration/src/ticketing/billetweb"
	"github.com/betagouv/assistant-declaration/src/ticketing/mock"
)

func TestGetClient(t *testing.T) {
	t.Parallel()

	t.Run("unknown provider is an error", func(t *testing.T) {
		t.Parallel()
		_, err := GetClient("weezevent", "access", "secret", "user@example.com", FactorySettings{})
		if err == nil {
			t.Fatal("expected an error for an unknown provider")
		}
	})

	t.Run("known providers resolve without mock", func(t *testing.T) {
		t.Parallel()
		for _, provider := range []string{ProviderBilletweb, ProviderMapado, ProviderSupersoniks} {
			client, err := GetClient(provider, "access", "secret", "user@example.com", FactorySettings{})
			if err != nil {
				t.Fatalf("GetClient(%s): %v", provider, err)
			}
			if _, isMock := client.(*mock.Client); isMock {
				t.Errorf("GetClient(%s) returned the mock client", provider)
			}
		}
	})

	t.Run("mock mode returns the mock for everyone", func(t *testing.T) {
		t.Parallel()
		client, err := GetClient(ProviderBilletweb, "access", "secret", "user@example.com", FactorySettings{UseMock: true})
		if err != nil {
			t.Fatalf("GetClient: %v", err)
		}
		if _, isMock := client.(*mock.Client); !isMock {
			t.Error("expected the mock client in mock mode")
		}
	})

	t.Run("deny-listed user bypasses the mock", func(t *testing.T) {
		t.Parallel()
		settings := FactorySettings{
			UseMock:            true,
			MockExcludedEmails: []string{"integration@example.com"},
		}
		client, err := GetClient(ProviderBilletweb, "access", "secret", "integration@example.com", settings)
		if err != nil {
			t.Fatalf("GetClient: %v", err)
		}
		if _, isReal := client.(*billetweb.Client); !isReal {
			t.Error("expected the real provider client for a deny-listed user")
		}
	})

	t.Run("unknown provider still fails for deny-listed user", func(t *testing.T) {
		t.Parallel()
		settings := FactorySettings{
			UseMock:            true,
			MockExcludedEmails: []string{"integration@example.com"},
		}
		if _, err := GetClient("weezevent", "access", "secret", "integration@example.com", settings); err == nil {
			t.Fatal("expected an error for an unknown provider")
		}
	})
}

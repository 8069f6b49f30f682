package sacd

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
)

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }

func sampleDeclarationInput() (models.Organization, models.EventSerie, []models.FlattenEvent, models.SacdDeclaration) {
	organization := models.Organization{ID: 1, Name: "Compagnie du Nord"}
	serie := models.EventSerie{ID: 4, Name: "Tournée d'hiver", TaxRate: 0.055}
	events := []models.FlattenEvent{
		{
			EventID:                        10,
			StartAt:                        time.Date(2024, 12, 1, 20, 0, 0, 0, time.UTC),
			EndAt:                          time.Date(2024, 12, 1, 22, 0, 0, 0, time.UTC),
			Place:                          "Théâtre du Parc",
			PlacePostalCode:                "75011",
			PlaceCapacity:                  300,
			PaidTickets:                    170,
			FreeTickets:                    30,
			TicketingRevenueIncludingTaxes: 1550,
			TicketingRevenueExcludingTaxes: 1469.19,
		},
	}
	declaration := models.SacdDeclaration{
		ID:                   "a6e61e8e-51fe-4d4a-91b2-0f2b6fabe2d0",
		EventSerieID:         4,
		ClientReference:      "REF-123",
		AverageTicketPrice:   9.12,
		RightsTransferAmount: floatPtr(1000),
		Producer: models.DeclarationParty{
			Name: "Compagnie du Nord", Street: "8 rue Haute", PostalCode: "59000", City: "Lille",
		},
		Presenter: models.DeclarationParty{
			Name: "Scène Nationale", Street: "3 avenue Foch", PostalCode: "75011", City: "Paris",
		},
		Venue: models.DeclarationParty{
			Name: "Théâtre du Parc", Street: "12 rue des Lices", PostalCode: "75011", City: "Paris",
			Siret: strPtr("12345678900011"),
		},
	}
	return organization, serie, events, declaration
}

func TestPrepareDeclarationParameter(t *testing.T) {
	t.Parallel()

	t.Run("byte-identical golden output", func(t *testing.T) {
		t.Parallel()
		organization, serie, events, declaration := sampleDeclarationInput()
		submittedAt := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)

		payload, err := PrepareDeclarationParameter(organization, serie, events, declaration, "1.2", submittedAt)
		if err != nil {
			t.Fatalf("PrepareDeclarationParameter: %v", err)
		}

		want := xml.Header +
			`<Declaration>` +
			`<Header><Reference>REF-123</Reference><Systeme>ASSISTANT_DECLARATION</Systeme><Version>1.2</Version><Date>2025-02-01</Date><NombreRepresentations>1</NombreRepresentations></Header>` +
			`<Representations><Representation>` +
			`<Numero>1</Numero><Date>2024-12-01</Date>` +
			`<Billetterie><RecetteTTC>1550.00</RecetteTTC><RecetteHT>1469.19</RecetteHT><PrixMoyenBillet>9.12</PrixMoyenBillet><NombreBilletsPayants>170</NombreBilletsPayants><NombreBilletsGratuits>30</NombreBilletsGratuits></Billetterie>` +
			`<Exploitation><CessionDroits>1000.00</CessionDroits></Exploitation>` +
			`<Salle><Nom>Théâtre du Parc</Nom><Adresse>12 rue des Lices</Adresse><CodePostal>75011</CodePostal><Ville>Paris</Ville><Siret>12345678900011</Siret><Jauge>300</Jauge></Salle>` +
			`<Diffuseur><Nom>Scène Nationale</Nom><Adresse>3 avenue Foch</Adresse><CodePostal>75011</CodePostal><Ville>Paris</Ville></Diffuseur>` +
			`<Producteur><Nom>Compagnie du Nord</Nom><Adresse>8 rue Haute</Adresse><CodePostal>59000</CodePostal><Ville>Lille</Ville></Producteur>` +
			`</Representation></Representations>` +
			`</Declaration>`
		if payload != want {
			t.Errorf("payload mismatch\n got: %s\nwant: %s", payload, want)
		}
	})

	t.Run("deterministic for the same inputs", func(t *testing.T) {
		t.Parallel()
		organization, serie, events, declaration := sampleDeclarationInput()
		submittedAt := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)

		first, err := PrepareDeclarationParameter(organization, serie, events, declaration, "1.2", submittedAt)
		if err != nil {
			t.Fatalf("first call: %v", err)
		}
		second, err := PrepareDeclarationParameter(organization, serie, events, declaration, "1.2", submittedAt)
		if err != nil {
			t.Fatalf("second call: %v", err)
		}
		if first != second {
			t.Error("expected byte-identical payloads for identical inputs")
		}
	})

	t.Run("absent optional amounts produce no element", func(t *testing.T) {
		t.Parallel()
		organization, serie, events, declaration := sampleDeclarationInput()
		declaration.RightsTransferAmount = nil

		payload, err := PrepareDeclarationParameter(organization, serie, events, declaration, "1.2", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("PrepareDeclarationParameter: %v", err)
		}
		if strings.Contains(payload, "<CessionDroits>") {
			t.Error("expected CessionDroits to be absent, not empty")
		}
		if !strings.Contains(payload, "<Exploitation></Exploitation>") {
			t.Error("expected an empty Exploitation block")
		}
	})
}

func TestParseDeclarationResponse(t *testing.T) {
	t.Parallel()

	t.Run("single representation as bare element", func(t *testing.T) {
		t.Parallel()
		payload := `<?xml version="1.0" encoding="UTF-8"?>
<Declaration>
  <Header><Reference>REF-123</Reference><NombreRepresentations>1</NombreRepresentations><Date>2025-02-02</Date></Header>
  <Representations>
    <Representation><Numero>1</Numero><Statut>OK</Statut></Representation>
  </Representations>
</Declaration>`

		response, err := ParseDeclarationResponse([]byte(payload))
		if err != nil {
			t.Fatalf("ParseDeclarationResponse: %v", err)
		}
		if response.Reference != "REF-123" {
			t.Errorf("expected reference REF-123, got %s", response.Reference)
		}
		if len(response.Representations) != 1 || response.Representations[0].Status != StatusOK {
			t.Errorf("unexpected representations: %+v", response.Representations)
		}
	})

	t.Run("multiple representations with warning details", func(t *testing.T) {
		t.Parallel()
		payload := `<?xml version="1.0" encoding="UTF-8"?>
<Declaration>
  <Header><Reference>REF-456</Reference><NombreRepresentations>2</NombreRepresentations><Date>2025-02-02</Date></Header>
  <Representations>
    <Representation><Numero>1</Numero><Statut>OK</Statut></Representation>
    <Representation><Numero>2</Numero><Statut>WARNING</Statut><Champ>Jauge</Champ><Message>Jauge inhabituelle</Message></Representation>
  </Representations>
</Declaration>`

		response, err := ParseDeclarationResponse([]byte(payload))
		if err != nil {
			t.Fatalf("ParseDeclarationResponse: %v", err)
		}
		if len(response.Representations) != 2 {
			t.Fatalf("expected 2 representations, got %d", len(response.Representations))
		}
		warning := response.Representations[1]
		if warning.Status != StatusWarning || warning.Field == nil || *warning.Field != "Jauge" {
			t.Errorf("unexpected warning: %+v", warning)
		}
	})

	t.Run("unknown status aborts", func(t *testing.T) {
		t.Parallel()
		payload := `<Declaration><Header><Reference>R</Reference><NombreRepresentations>1</NombreRepresentations><Date>2025-02-02</Date></Header><Representations><Representation><Numero>1</Numero><Statut>MAYBE</Statut></Representation></Representations></Declaration>`
		if _, err := ParseDeclarationResponse([]byte(payload)); err == nil {
			t.Fatal("expected an error for an unknown status")
		}
	})

	t.Run("announced count must match", func(t *testing.T) {
		t.Parallel()
		payload := `<Declaration><Header><Reference>R</Reference><NombreRepresentations>3</NombreRepresentations><Date>2025-02-02</Date></Header><Representations><Representation><Numero>1</Numero><Statut>OK</Statut></Representation></Representations></Declaration>`
		if _, err := ParseDeclarationResponse([]byte(payload)); err == nil {
			t.Fatal("expected an error for a count mismatch")
		}
	})

	t.Run("malformed xml aborts", func(t *testing.T) {
		t.Parallel()
		if _, err := ParseDeclarationResponse([]byte("<Declaration>")); err == nil {
			t.Fatal("expected an error for malformed xml")
		}
	})
}

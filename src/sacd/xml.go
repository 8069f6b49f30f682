package sacd

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/betagouv/assistant-declaration/src/models"
)

// systemIdentifier is how this software introduces itself in the submission
// header, as registered with SACD.
const systemIdentifier = "ASSISTANT_DECLARATION"

const dateFormat = "2006-01-02"

// Money renders with exactly two decimals, as the SACD schema expects.
// Optional amounts are pointer fields tagged omitempty: an absent value must
// not surface as an empty element, since the SACD parser treats presence as
// meaningful.
type Money float64

func (m Money) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(strconv.FormatFloat(float64(m), 'f', 2, 64), start)
}

func optionalMoney(value *float64) *Money {
	if value == nil {
		return nil
	}
	m := Money(*value)
	return &m
}

// --- Submission document ---

type declarationDocument struct {
	XMLName         xml.Name        `xml:"Declaration"`
	Header          header          `xml:"Header"`
	Representations representations `xml:"Representations"`
}

type header struct {
	Reference             string `xml:"Reference"`
	Systeme               string `xml:"Systeme"`
	Version               string `xml:"Version"`
	Date                  string `xml:"Date"`
	NombreRepresentations int    `xml:"NombreRepresentations"`
}

type representations struct {
	Representation []representation `xml:"Representation"`
}

type representation struct {
	Numero       int          `xml:"Numero"`
	Date         string       `xml:"Date"`
	Billetterie  billetterie  `xml:"Billetterie"`
	Exploitation exploitation `xml:"Exploitation"`
	Salle        salle        `xml:"Salle"`
	Diffuseur    partie       `xml:"Diffuseur"`
	Producteur   partie       `xml:"Producteur"`
}

type billetterie struct {
	RecetteTTC            Money `xml:"RecetteTTC"`
	RecetteHT             Money `xml:"RecetteHT"`
	PrixMoyenBillet       Money `xml:"PrixMoyenBillet"`
	NombreBilletsPayants  int   `xml:"NombreBilletsPayants"`
	NombreBilletsGratuits int   `xml:"NombreBilletsGratuits"`
}

type exploitation struct {
	CessionDroits      *Money `xml:"CessionDroits,omitempty"`
	FraisAnnexes       *Money `xml:"FraisAnnexes,omitempty"`
	ApportCoproduction *Money `xml:"ApportCoproduction,omitempty"`
	GarantieRecettes   *Money `xml:"GarantieRecettes,omitempty"`
	Depenses           *Money `xml:"Depenses,omitempty"`
}

type salle struct {
	Nom        string  `xml:"Nom"`
	Adresse    string  `xml:"Adresse"`
	CodePostal string  `xml:"CodePostal"`
	Ville      string  `xml:"Ville"`
	Siret      *string `xml:"Siret,omitempty"`
	Jauge      int     `xml:"Jauge"`
}

type partie struct {
	Nom        string  `xml:"Nom"`
	Adresse    string  `xml:"Adresse"`
	CodePostal string  `xml:"CodePostal"`
	Ville      string  `xml:"Ville"`
	Siret      *string `xml:"Siret,omitempty"`
}

// PrepareDeclarationParameter serializes one declaration into the SACD
// submission document. It is deterministic: the submission timestamp is an
// explicit parameter, never read from the clock, so output is reproducible
// byte-for-byte.
func PrepareDeclarationParameter(
	organization models.Organization,
	serie models.EventSerie,
	events []models.FlattenEvent,
	declaration models.SacdDeclaration,
	version string,
	submittedAt time.Time,
) (string, error) {
	document := declarationDocument{
		Header: header{
			Reference:             declaration.ClientReference,
			Systeme:               systemIdentifier,
			Version:               version,
			Date:                  submittedAt.Format(dateFormat),
			NombreRepresentations: len(events),
		},
	}

	for i, event := range events {
		document.Representations.Representation = append(document.Representations.Representation, representation{
			Numero: i + 1,
			Date:   event.StartAt.Format(dateFormat),
			Billetterie: billetterie{
				RecetteTTC:            Money(event.TicketingRevenueIncludingTaxes),
				RecetteHT:             Money(event.TicketingRevenueExcludingTaxes),
				PrixMoyenBillet:       Money(declaration.AverageTicketPrice),
				NombreBilletsPayants:  event.PaidTickets,
				NombreBilletsGratuits: event.FreeTickets,
			},
			Exploitation: exploitation{
				CessionDroits:      optionalMoney(declaration.RightsTransferAmount),
				FraisAnnexes:       optionalMoney(declaration.RightsFeesAmount),
				ApportCoproduction: optionalMoney(declaration.CoProductionContribution),
				GarantieRecettes:   optionalMoney(declaration.GuaranteeAmount),
				Depenses:           optionalMoney(declaration.ExpensesAmount),
			},
			Salle: salle{
				Nom:        event.Place,
				Adresse:    declaration.Venue.Street,
				CodePostal: event.PlacePostalCode,
				Ville:      declaration.Venue.City,
				Siret:      declaration.Venue.Siret,
				Jauge:      event.PlaceCapacity,
			},
			Diffuseur: partie{
				Nom:        declaration.Presenter.Name,
				Adresse:    declaration.Presenter.Street,
				CodePostal: declaration.Presenter.PostalCode,
				Ville:      declaration.Presenter.City,
				Siret:      declaration.Presenter.Siret,
			},
			Producteur: partie{
				Nom:        declaration.Producer.Name,
				Adresse:    declaration.Producer.Street,
				CodePostal: declaration.Producer.PostalCode,
				Ville:      declaration.Producer.City,
				Siret:      declaration.Producer.Siret,
			},
		})
	}

	payload, err := xml.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("sacd: marshal declaration for serie %d of organization %d: %w", serie.ID, organization.ID, err)
	}
	return xml.Header + string(payload), nil
}

// --- Acknowledgement document ---

// Representation statuses returned by SACD.
const (
	StatusOK      = "OK"
	StatusWarning = "WARNING"
	StatusKO      = "KO"
)

// RepresentationStatus is SACD's verdict on one submitted representation.
// Field and Message are only present on issues.
type RepresentationStatus struct {
	LineNumber int     `json:"line_number"`
	Status     string  `json:"status"`
	Field      *string `json:"field"`
	Message    *string `json:"message"`
}

// DeclarationResponse is the typed acknowledgement for one submission.
type DeclarationResponse struct {
	Reference       string                 `json:"reference"`
	ProcessedAt     time.Time              `json:"processed_at"`
	Representations []RepresentationStatus `json:"representations"`
}

type ackDocument struct {
	XMLName xml.Name  `xml:"Declaration"`
	Header  ackHeader `xml:"Header"`
	Representations struct {
		Representation []ackRepresentation `xml:"Representation"`
	} `xml:"Representations"`
}

type ackHeader struct {
	Reference             string `xml:"Reference"`
	NombreRepresentations int    `xml:"NombreRepresentations"`
	Date                  string `xml:"Date"`
}

type ackRepresentation struct {
	Numero  int     `xml:"Numero"`
	Statut  string  `xml:"Statut"`
	Champ   *string `xml:"Champ"`
	Message *string `xml:"Message"`
}

// ParseDeclarationResponse decodes SACD's XML acknowledgement into a typed
// per-representation status list. A single submitted representation comes
// back as a bare element instead of a repeated list; decoding into a slice
// covers both shapes. A malformed acknowledgement aborts the parse entirely.
func ParseDeclarationResponse(payload []byte) (DeclarationResponse, error) {
	var document ackDocument
	if err := xml.Unmarshal(payload, &document); err != nil {
		return DeclarationResponse{}, fmt.Errorf("sacd: decode acknowledgement: %w", err)
	}

	processedAt, err := time.Parse(dateFormat, document.Header.Date)
	if err != nil {
		return DeclarationResponse{}, fmt.Errorf("sacd: invalid acknowledgement date %q: %w", document.Header.Date, err)
	}

	response := DeclarationResponse{
		Reference:   document.Header.Reference,
		ProcessedAt: processedAt,
	}

	for _, item := range document.Representations.Representation {
		switch item.Statut {
		case StatusOK, StatusWarning, StatusKO:
		default:
			return DeclarationResponse{}, fmt.Errorf("sacd: unknown representation status %q", item.Statut)
		}
		response.Representations = append(response.Representations, RepresentationStatus{
			LineNumber: item.Numero,
			Status:     item.Statut,
			Field:      item.Champ,
			Message:    item.Message,
		})
	}

	if document.Header.NombreRepresentations != 0 && document.Header.NombreRepresentations != len(response.Representations) {
		return DeclarationResponse{}, fmt.Errorf("sacd: acknowledgement announces %d representations but carries %d",
			document.Header.NombreRepresentations, len(response.Representations))
	}

	return response, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/betagouv/assistant-declaration/src/config"
	"github.com/betagouv/assistant-declaration/src/declaration"
	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/models"
	"github.com/betagouv/assistant-declaration/src/sacd"
	"github.com/betagouv/assistant-declaration/src/storage"
	"github.com/betagouv/assistant-declaration/src/utils"
)

// SacdDeclarationData is everything the declaration page needs for one
// series: the merged events, the aggregate figures and the stored
// declaration state.
type SacdDeclarationData struct {
	Serie       models.EventSerie      `json:"serie"`
	Events      []models.FlattenEvent  `json:"events"`
	KeyFigures  models.SacdKeyFigures  `json:"key_figures"`
	Declaration models.SacdDeclaration `json:"declaration"`
}

// DeclarationService assembles declaration data from synchronized ticketing
// facts and transmits SACD declarations.
type DeclarationService interface {
	GetFlattenEvents(ctx context.Context, serieID int64) ([]models.FlattenEvent, error)
	GetKeyFigures(ctx context.Context, serieID int64) (models.DeclarationKeyFigures, error)
	GetSacdDeclarationData(ctx context.Context, serieID int64) (SacdDeclarationData, error)
	SaveSacdDeclaration(ctx context.Context, decl models.SacdDeclaration) (models.SacdDeclaration, error)
	SaveSerieDeclarationDefaults(ctx context.Context, defaults models.SerieDeclarationDefaults) error
	SaveEventOverride(ctx context.Context, override models.EventOverride) error
	TransmitSacdDeclaration(ctx context.Context, serieID int64, userEmail string) (sacd.DeclarationResponse, error)
}

type declarationService struct {
	store        *storage.Store
	sacdClient   *sacd.Client
	emailService EmailService
	figuresCache *cache.Cache
	now          func() time.Time
}

func NewDeclarationService(store *storage.Store, sacdClient *sacd.Client, emailService EmailService) DeclarationService {
	return &declarationService{
		store:        store,
		sacdClient:   sacdClient,
		emailService: emailService,
		figuresCache: cache.New(15*time.Minute, 30*time.Minute),
		now:          time.Now,
	}
}

func figuresCacheKey(serieID int64) string {
	return fmt.Sprintf("keyfigures_%d", serieID)
}

// GetFlattenEvents loads the synchronized facts of a series and merges them
// with the stored defaults and per-event overrides.
func (s *declarationService) GetFlattenEvents(ctx context.Context, serieID int64) ([]models.FlattenEvent, error) {
	serie, err := s.store.GetEventSerie(ctx, serieID)
	if err != nil {
		return nil, fmt.Errorf("load event serie %d: %w", serieID, err)
	}
	events, err := s.store.ListEvents(ctx, serieID)
	if err != nil {
		return nil, fmt.Errorf("list events of serie %d: %w", serieID, err)
	}
	categories, err := s.store.ListTicketCategories(ctx, serieID)
	if err != nil {
		return nil, fmt.Errorf("list ticket categories of serie %d: %w", serieID, err)
	}
	sales, err := s.store.ListSales(ctx, serieID)
	if err != nil {
		return nil, fmt.Errorf("list sales of serie %d: %w", serieID, err)
	}
	defaults, err := s.store.GetSerieDeclarationDefaults(ctx, serieID)
	if err != nil {
		return nil, fmt.Errorf("load declaration defaults of serie %d: %w", serieID, err)
	}
	overrides, err := s.store.ListEventOverrides(ctx, serieID)
	if err != nil {
		return nil, fmt.Errorf("list event overrides of serie %d: %w", serieID, err)
	}

	return declaration.FlattenEvents(serie, events, categories, sales, defaults, overrides), nil
}

// GetKeyFigures returns the aggregate figures of a series. Figures are
// cached for a few minutes; every write that can change them invalidates
// the entry.
func (s *declarationService) GetKeyFigures(ctx context.Context, serieID int64) (models.DeclarationKeyFigures, error) {
	if cached, found := s.figuresCache.Get(figuresCacheKey(serieID)); found {
		if figures, ok := cached.(models.DeclarationKeyFigures); ok {
			logger.L.Debug("Key figures requested, serving from cache", "serieID", serieID)
			return figures, nil
		}
	}

	flattened, err := s.GetFlattenEvents(ctx, serieID)
	if err != nil {
		return models.DeclarationKeyFigures{}, err
	}
	figures := declaration.ComputeKeyFigures(flattened)
	s.figuresCache.Set(figuresCacheKey(serieID), figures, cache.DefaultExpiration)
	return figures, nil
}

func (s *declarationService) GetSacdDeclarationData(ctx context.Context, serieID int64) (SacdDeclarationData, error) {
	serie, err := s.store.GetEventSerie(ctx, serieID)
	if err != nil {
		return SacdDeclarationData{}, fmt.Errorf("load event serie %d: %w", serieID, err)
	}

	flattened, err := s.GetFlattenEvents(ctx, serieID)
	if err != nil {
		return SacdDeclarationData{}, err
	}

	decl, err := s.store.GetSacdDeclaration(ctx, serieID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return SacdDeclarationData{}, fmt.Errorf("load sacd declaration of serie %d: %w", serieID, err)
		}
		// Never declared: hand back an empty pending declaration to fill in.
		decl = models.SacdDeclaration{
			EventSerieID: serieID,
			Status:       models.DeclarationStatusPending,
		}
	}

	// Default the average ticket price from the synchronized sales when the
	// user has not entered one.
	if decl.AverageTicketPrice == 0 {
		figures := declaration.ComputeKeyFigures(flattened)
		if figures.PaidTickets > 0 {
			decl.AverageTicketPrice = utils.RoundFloat(figures.TicketingRevenueIncludingTaxes/float64(figures.PaidTickets), 2)
		}
	}

	return SacdDeclarationData{
		Serie:       serie,
		Events:      flattened,
		KeyFigures:  declaration.ComputeSacdKeyFigures(flattened, decl),
		Declaration: decl,
	}, nil
}

// SaveSacdDeclaration persists the user-entered declaration state. A first
// save mints the identifier and the client reference sent to SACD; both are
// then stable for the life of the declaration so retransmissions are
// recognized as updates, never duplicates.
func (s *declarationService) SaveSacdDeclaration(ctx context.Context, decl models.SacdDeclaration) (models.SacdDeclaration, error) {
	if decl.ID == "" {
		decl.ID = uuid.NewString()
	}
	if decl.ClientReference == "" {
		decl.ClientReference = uuid.NewString()
	}
	if decl.Status == "" {
		decl.Status = models.DeclarationStatusPending
	}
	if err := s.store.SaveSacdDeclaration(ctx, decl); err != nil {
		return models.SacdDeclaration{}, fmt.Errorf("save sacd declaration: %w", err)
	}
	s.figuresCache.Delete(figuresCacheKey(decl.EventSerieID))
	return decl, nil
}

func (s *declarationService) SaveSerieDeclarationDefaults(ctx context.Context, defaults models.SerieDeclarationDefaults) error {
	if err := s.store.SaveSerieDeclarationDefaults(ctx, defaults); err != nil {
		return fmt.Errorf("save declaration defaults: %w", err)
	}
	s.figuresCache.Delete(figuresCacheKey(defaults.EventSerieID))
	return nil
}

func (s *declarationService) SaveEventOverride(ctx context.Context, override models.EventOverride) error {
	if err := s.store.SaveEventOverride(ctx, override); err != nil {
		return fmt.Errorf("save event override: %w", err)
	}
	event, err := s.eventSerieOfEvent(ctx, override.EventID)
	if err != nil {
		return err
	}
	s.figuresCache.Delete(figuresCacheKey(event))
	return nil
}

func (s *declarationService) eventSerieOfEvent(ctx context.Context, eventID int64) (int64, error) {
	serieID, err := s.store.GetEventSerieIDOfEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("resolve serie of event %d: %w", eventID, err)
	}
	return serieID, nil
}

// TransmitSacdDeclaration builds the submission document for a series and
// sends it through the SACD API. The session is closed whatever the declare
// outcome. On acceptance the raw payload and timestamp are recorded so the
// exact transmitted document can be audited later.
func (s *declarationService) TransmitSacdDeclaration(ctx context.Context, serieID int64, userEmail string) (sacd.DeclarationResponse, error) {
	data, err := s.GetSacdDeclarationData(ctx, serieID)
	if err != nil {
		return sacd.DeclarationResponse{}, err
	}
	if len(data.Events) == 0 {
		return sacd.DeclarationResponse{}, fmt.Errorf("serie %d has no event to declare", serieID)
	}
	if data.Declaration.ID == "" {
		return sacd.DeclarationResponse{}, fmt.Errorf("serie %d has no saved declaration to transmit", serieID)
	}

	connection, err := s.store.GetTicketingConnection(ctx, data.Serie.TicketingConnectionID)
	if err != nil {
		return sacd.DeclarationResponse{}, fmt.Errorf("load connection of serie %d: %w", serieID, err)
	}
	organization, err := s.store.GetOrganization(ctx, connection.OrganizationID)
	if err != nil {
		return sacd.DeclarationResponse{}, fmt.Errorf("load organization of serie %d: %w", serieID, err)
	}

	submittedAt := s.now().UTC()
	payload, err := sacd.PrepareDeclarationParameter(organization, data.Serie, data.Events, data.Declaration, config.Cfg.SacdDeclarationVersion, submittedAt)
	if err != nil {
		return sacd.DeclarationResponse{}, fmt.Errorf("prepare declaration payload: %w", err)
	}

	token, err := s.sacdClient.Login(ctx)
	if err != nil {
		return sacd.DeclarationResponse{}, fmt.Errorf("sacd login: %w", err)
	}
	defer func() {
		if logoutErr := s.sacdClient.Logout(ctx, token); logoutErr != nil {
			logger.L.Warn("SACD logout failed", "serieID", serieID, "error", logoutErr)
		}
	}()

	response, err := s.sacdClient.Declare(ctx, token, payload)
	if err != nil {
		return sacd.DeclarationResponse{}, fmt.Errorf("sacd declare: %w", err)
	}

	if err := s.store.RecordDeclarationTransmission(ctx, data.Declaration.ID, payload, submittedAt); err != nil {
		return sacd.DeclarationResponse{}, fmt.Errorf("record transmission: %w", err)
	}
	s.figuresCache.Delete(figuresCacheKey(serieID))

	logger.L.Info("SACD declaration transmitted",
		"serieID", serieID,
		"reference", data.Declaration.ClientReference,
		"representations", len(data.Events))

	if userEmail != "" {
		if emailErr := s.emailService.SendDeclarationTransmittedEmail(userEmail, data.Serie.Name, data.Declaration.ClientReference); emailErr != nil {
			logger.L.Error("Failed to send declaration transmitted email", "serieID", serieID, "error", emailErr)
		}
	}
	return response, nil
}

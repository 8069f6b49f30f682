package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/betagouv/assistant-declaration/src/logger"
	"github.com/betagouv/assistant-declaration/src/storage"
	syncpkg "github.com/betagouv/assistant-declaration/src/sync"
	"github.com/betagouv/assistant-declaration/src/ticketing"
)

// TicketingSyncService drives the reconciliation of every connection of one
// organization.
type TicketingSyncService interface {
	SynchronizeOrganization(ctx context.Context, organizationID int64, userEmail string) error
	TestConnection(ctx context.Context, connectionID int64, userEmail string) (bool, error)
}

type ticketingSyncService struct {
	store           *storage.Store
	synchronizer    *syncpkg.Synchronizer
	factorySettings ticketing.FactorySettings
	emailService    EmailService

	// One sync at a time per organization; overlapping triggers from the
	// HTTP layer and the CLI would otherwise race on the same rows.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewTicketingSyncService(store *storage.Store, factorySettings ticketing.FactorySettings, emailService EmailService) TicketingSyncService {
	return &ticketingSyncService{
		store:           store,
		synchronizer:    syncpkg.NewSynchronizer(syncpkg.WrapStore(store)),
		factorySettings: factorySettings,
		emailService:    emailService,
		locks:           make(map[int64]*sync.Mutex),
	}
}

func (s *ticketingSyncService) organizationLock(organizationID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[organizationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[organizationID] = lock
	}
	return lock
}

func (s *ticketingSyncService) SynchronizeOrganization(ctx context.Context, organizationID int64, userEmail string) error {
	lock := s.organizationLock(organizationID)
	lock.Lock()
	defer lock.Unlock()

	organization, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("load organization %d: %w", organizationID, err)
	}

	connections, err := s.store.ListTicketingConnections(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("list connections for organization %d: %w", organizationID, err)
	}
	if len(connections) == 0 {
		logger.L.Info("No ticketing connection configured, nothing to synchronize", "organizationID", organizationID)
		return nil
	}

	for _, connection := range connections {
		client, err := ticketing.GetClient(connection.Provider, connection.APIAccessKey, connection.APISecretKey, userEmail, s.factorySettings)
		if err != nil {
			// Unknown provider is a configuration error: fatal, never retried.
			return err
		}

		if err := s.synchronizer.SynchronizeConnection(ctx, client, connection); err != nil {
			if userEmail != "" {
				if emailErr := s.emailService.SendSyncFailureEmail(userEmail, organization.Name, err.Error()); emailErr != nil {
					logger.L.Error("Failed to send sync failure email", "organizationID", organizationID, "error", emailErr)
				}
			}
			return fmt.Errorf("synchronize connection %d: %w", connection.ID, err)
		}
	}
	return nil
}

func (s *ticketingSyncService) TestConnection(ctx context.Context, connectionID int64, userEmail string) (bool, error) {
	connection, err := s.store.GetTicketingConnection(ctx, connectionID)
	if err != nil {
		return false, fmt.Errorf("load connection %d: %w", connectionID, err)
	}

	client, err := ticketing.GetClient(connection.Provider, connection.APIAccessKey, connection.APISecretKey, userEmail, s.factorySettings)
	if err != nil {
		return false, err
	}
	return client.TestConnection(ctx)
}

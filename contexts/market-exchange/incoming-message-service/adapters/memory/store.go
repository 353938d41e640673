package memory

import (
	"context"
	"sync"
	"time"

	domainerrors "gridgate/contexts/market-exchange/incoming-message-service/domain/errors"
	"gridgate/contexts/market-exchange/incoming-message-service/ports"
	"gridgate/internal/shared/markets"
)

// Store is an in-memory adapter implementing the intake ports for local
// runtime and tests. It is not intended as production persistence.
type Store struct {
	mu           sync.RWMutex
	messages     map[registryKey]time.Time
	transactions map[registryKey]time.Time
	grants       map[grantKey]bool
	now          time.Time
}

type registryKey struct {
	sender markets.ActorNumber
	id     string
}

type grantKey struct {
	number markets.ActorNumber
	role   markets.ActorRole
	caller string
}

func NewStore() *Store {
	return &Store{
		messages:     make(map[registryKey]time.Time),
		transactions: make(map[registryKey]time.Time),
		grants:       make(map[grantKey]bool),
	}
}

func (s *Store) MessageIDExists(_ context.Context, sender markets.ActorNumber, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[registryKey{sender: sender, id: messageID}]
	return ok, nil
}

func (s *Store) ExistingTransactionIDs(
	_ context.Context,
	sender markets.ActorNumber,
	transactionIDs []string,
) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var existing []string
	for _, id := range transactionIDs {
		if _, ok := s.transactions[registryKey{sender: sender, id: id}]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (s *Store) CommitEnvelope(_ context.Context, registration ports.EnvelopeRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	messageKey := registryKey{sender: registration.SenderNumber, id: registration.MessageID}
	if _, ok := s.messages[messageKey]; ok {
		return domainerrors.ErrDuplicateRegistration
	}
	for _, id := range registration.TransactionIDs {
		if _, ok := s.transactions[registryKey{sender: registration.SenderNumber, id: id}]; ok {
			return domainerrors.ErrDuplicateRegistration
		}
	}

	s.messages[messageKey] = registration.AcceptedAt
	for _, id := range registration.TransactionIDs {
		s.transactions[registryKey{sender: registration.SenderNumber, id: id}] = registration.AcceptedAt
	}
	return nil
}

// Grant records an authorization fact used by IsAuthorized.
func (s *Store) Grant(number markets.ActorNumber, role markets.ActorRole, callerIdentity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{number: number, role: role, caller: callerIdentity}] = true
}

func (s *Store) IsAuthorized(
	_ context.Context,
	actorNumber markets.ActorNumber,
	role markets.ActorRole,
	callerIdentity string,
) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[grantKey{number: actorNumber, role: role, caller: callerIdentity}], nil
}

// SetNow pins the clock for deterministic tests; zero means wall clock.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gridgate/contexts/market-exchange/outgoing-message-service/domain/entities"
	domainerrors "gridgate/contexts/market-exchange/outgoing-message-service/domain/errors"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
	"gridgate/internal/shared/markets"
)

// Store is an in-memory adapter implementing every mailbox port for local
// runtime and tests. It is not intended as production persistence.
type Store struct {
	mu          sync.Mutex
	messages    map[string]entities.OutgoingMessage
	order       map[string][]string // bundle id -> message ids in attach order
	bundles     map[string]entities.Bundle
	attachable  map[mailboxKey]string // mailbox -> attachable bundle id
	locks       map[string]time.Time
	blobs       map[string][]byte
	eventDedup  map[string]string
	now         time.Time
	sequence    int
	idFormat    string
}

type mailboxKey struct {
	number   markets.ActorNumber
	role     markets.ActorRole
	category markets.MessageCategory
}

func NewStore() *Store {
	return &Store{
		messages:   make(map[string]entities.OutgoingMessage),
		order:      make(map[string][]string),
		bundles:    make(map[string]entities.Bundle),
		attachable: make(map[mailboxKey]string),
		locks:      make(map[string]time.Time),
		blobs:      make(map[string][]byte),
		eventDedup: make(map[string]string),
		idFormat:   "generated-%06d",
	}
}

func (s *Store) Insert(_ context.Context, message entities.OutgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.ID] = message
	return nil
}

func (s *Store) MessagesForBundle(_ context.Context, bundleID string) ([]entities.OutgoingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.order[bundleID]
	messages := make([]entities.OutgoingMessage, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, s.messages[id])
	}
	return messages, nil
}

func (s *Store) CountAvailable(_ context.Context, receiverNumber markets.ActorNumber) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, bundle := range s.bundles {
		if bundle.Receiver.Number != receiverNumber || bundle.Dequeued() {
			continue
		}
		count += len(s.order[bundle.ID])
	}
	return count, nil
}

func (s *Store) UnassignedBefore(_ context.Context, cutoff time.Time, limit int) ([]entities.OutgoingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []entities.OutgoingMessage
	for _, message := range s.messages {
		if message.AssignedBundleID == "" && message.CreatedAt.Before(cutoff) {
			matched = append(matched, message)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) DeleteMessages(_ context.Context, messageIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range messageIDs {
		if _, ok := s.messages[id]; ok {
			delete(s.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) AttachableBundle(
	_ context.Context,
	receiver markets.Actor,
	category markets.MessageCategory,
) (entities.Bundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.attachable[mailboxKey{number: receiver.Number, role: receiver.Role, category: category}]
	if !ok {
		return entities.Bundle{}, false, nil
	}
	return s.bundles[id], true, nil
}

func (s *Store) OpenBundle(_ context.Context, bundle entities.Bundle, displacedBundleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mailboxKey{number: bundle.Receiver.Number, role: bundle.Receiver.Role, category: bundle.Category}
	if current, ok := s.attachable[key]; ok && current != displacedBundleID {
		return domainerrors.ErrOpenBundleConflict
	}
	s.attachable[key] = bundle.ID
	s.bundles[bundle.ID] = bundle
	return nil
}

func (s *Store) AttachMessage(_ context.Context, bundleID string, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle, ok := s.bundles[bundleID]
	if !ok {
		return false, domainerrors.ErrBundleNotFound
	}
	key := mailboxKey{number: bundle.Receiver.Number, role: bundle.Receiver.Role, category: bundle.Category}
	if s.attachable[key] != bundleID || bundle.MessageCount >= bundle.MaxMessageCount {
		return false, nil
	}
	bundle.MessageCount++
	s.bundles[bundleID] = bundle
	s.order[bundleID] = append(s.order[bundleID], messageID)
	message := s.messages[messageID]
	message.AssignedBundleID = bundleID
	s.messages[messageID] = message
	return true, nil
}

func (s *Store) NextPeekableBundle(
	_ context.Context,
	receiver markets.Actor,
	category markets.MessageCategory,
) (entities.Bundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []entities.Bundle
	for _, bundle := range s.bundles {
		if bundle.Receiver != receiver || bundle.Category != category {
			continue
		}
		if bundle.Dequeued() || len(s.order[bundle.ID]) == 0 {
			continue
		}
		candidates = append(candidates, bundle)
	}
	if len(candidates) == 0 {
		return entities.Bundle{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], true, nil
}

func (s *Store) FreezeBundle(_ context.Context, bundleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle, ok := s.bundles[bundleID]
	if !ok {
		return domainerrors.ErrBundleNotFound
	}
	key := mailboxKey{number: bundle.Receiver.Number, role: bundle.Receiver.Role, category: bundle.Category}
	if s.attachable[key] == bundleID {
		delete(s.attachable, key)
	}
	return nil
}

func (s *Store) SetPeeked(_ context.Context, bundleID string, peekedMessageID string, documentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle, ok := s.bundles[bundleID]
	if !ok {
		return domainerrors.ErrBundleNotFound
	}
	if err := bundle.MarkPeeked(peekedMessageID, documentRef); err != nil {
		return err
	}
	s.bundles[bundleID] = bundle
	return nil
}

func (s *Store) BundleByPeekedMessageID(
	_ context.Context,
	peekedMessageID string,
	receiver markets.Actor,
) (entities.Bundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bundle := range s.bundles {
		if bundle.PeekedMessageID == peekedMessageID && bundle.Receiver == receiver {
			return bundle, true, nil
		}
	}
	return entities.Bundle{}, false, nil
}

func (s *Store) MarkDequeued(_ context.Context, bundleID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle, ok := s.bundles[bundleID]
	if !ok {
		return false, domainerrors.ErrBundleNotFound
	}
	if err := bundle.MarkDequeued(at); err != nil {
		return false, nil
	}
	s.bundles[bundleID] = bundle
	return true, nil
}

func (s *Store) DequeuedBefore(_ context.Context, cutoff time.Time, limit int) ([]entities.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []entities.Bundle
	for _, bundle := range s.bundles {
		if bundle.DequeuedAt != nil && bundle.DequeuedAt.Before(cutoff) {
			matched = append(matched, bundle)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) PurgeBundles(_ context.Context, bundleIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, bundleID := range bundleIDs {
		if _, ok := s.bundles[bundleID]; !ok {
			continue
		}
		for _, messageID := range s.order[bundleID] {
			delete(s.messages, messageID)
		}
		delete(s.order, bundleID)
		delete(s.bundles, bundleID)
		delete(s.locks, bundleID)
		deleted++
	}
	return deleted, nil
}

func (s *Store) TryAcquire(_ context.Context, bundleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clockNow()
	if acquiredAt, held := s.locks[bundleID]; held && now.Sub(acquiredAt) < ports.LockBuildTimeout {
		return false, nil
	}
	s.locks[bundleID] = now
	return true, nil
}

func (s *Store) Release(_ context.Context, bundleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, bundleID)
	return nil
}

func (s *Store) Put(_ context.Context, ref string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = append([]byte(nil), data...)
	return nil
}

func (s *Store) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, domainerrors.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Delete(_ context.Context, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		delete(s.blobs, ref)
	}
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	_ time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.eventDedup[eventID]; seen {
		return false, nil
	}
	s.eventDedup[eventID] = payloadHash
	return true, nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eventDedup, eventID)
	return nil
}

// SetNow pins the clock for deterministic tests; zero means wall clock.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockNow()
}

// clockNow must be called with s.mu held.
func (s *Store) clockNow() time.Time {
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return fmt.Sprintf(s.idFormat, s.sequence), nil
}

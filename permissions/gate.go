package permissions

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mentorhub/chat_backend/models"
	"gorm.io/gorm"
)

const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

// Gate is the single source of truth for whether two identities may exchange
// messages. It owns the chat-request state machine: a request is created
// pending by a sender and resolved exactly once by the receiver.
type Gate struct {
	db    *gorm.DB
	pairs *pairLocks
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{
		db:    db,
		pairs: newPairLocks(),
	}
}

// CreateRequest opens a chat request from sender to receiver. If an approved
// or pending request already exists between the pair (in either direction),
// that request is returned unchanged with alreadyActive true and no new row
// is created. Declined requests do not block a fresh request.
func (g *Gate) CreateRequest(sender, receiver, message string) (*models.ChatRequest, bool, error) {
	sender = strings.TrimSpace(sender)
	receiver = strings.TrimSpace(receiver)
	if sender == "" || receiver == "" || sender == receiver {
		return nil, false, ErrInvalidIdentity
	}

	key := models.DeriveConversationKey(sender, receiver).String()
	lock := g.pairs.get(key)
	lock.Lock()
	defer lock.Unlock()

	var existing models.ChatRequest
	err := g.db.Where("pair_key = ? AND status IN ?", key,
		[]string{models.RequestPending, models.RequestApproved}).
		First(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	request := models.ChatRequest{
		PairKey:  key,
		Sender:   sender,
		Receiver: receiver,
		Message:  strings.TrimSpace(message),
		Status:   models.RequestPending,
	}
	if err := g.db.Create(&request).Error; err != nil {
		return nil, false, err
	}

	return &request, false, nil
}

// Respond resolves a pending request. The transition happens exactly once:
// responding to an already-resolved request fails with ErrAlreadyResolved and
// never changes the stored status.
func (g *Gate) Respond(requestID uint, decision string) (*models.ChatRequest, error) {
	var status string
	switch decision {
	case DecisionApprove:
		status = models.RequestApproved
	case DecisionDecline:
		status = models.RequestDeclined
	default:
		return nil, ErrInvalidDecision
	}

	var request models.ChatRequest
	if err := g.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// The pair lock serializes the transition against the message-send path,
	// so a send observes either the old or the new status, never a torn one.
	lock := g.pairs.get(request.PairKey)
	lock.Lock()
	defer lock.Unlock()

	if err := g.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, ErrAlreadyResolved
	}

	now := time.Now()
	request.Status = status
	request.RespondedAt = &now
	if err := g.db.Save(&request).Error; err != nil {
		return nil, err
	}

	return &request, nil
}

// Get fetches a request by id.
func (g *Gate) Get(requestID uint) (*models.ChatRequest, error) {
	var request models.ChatRequest
	if err := g.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// CanExchange reports whether an approved request exists between the
// unordered pair. Direction does not matter.
func (g *Gate) CanExchange(a, b string) (bool, error) {
	return g.approvedExists(models.DeriveConversationKey(a, b).String())
}

// Authorized runs fn while holding the pair lock, but only if an approved
// request exists between a and b. A Respond that committed before the lock
// was acquired is always observed, so a send racing a decline resolves by
// real commit order.
func (g *Gate) Authorized(a, b string, fn func() error) error {
	key := models.DeriveConversationKey(a, b).String()
	lock := g.pairs.get(key)
	lock.Lock()
	defer lock.Unlock()

	ok, err := g.approvedExists(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return fn()
}

// ListForUser returns every request the identity sent or received, newest
// first, for UI display.
func (g *Gate) ListForUser(identity string) ([]models.ChatRequest, error) {
	var requests []models.ChatRequest
	err := g.db.Where("sender = ? OR receiver = ?", identity, identity).
		Order("created_at DESC, id DESC").
		Find(&requests).Error
	return requests, err
}

func (g *Gate) approvedExists(pairKey string) (bool, error) {
	var count int64
	err := g.db.Model(&models.ChatRequest{}).
		Where("pair_key = ? AND status = ?", pairKey, models.RequestApproved).
		Count(&count).Error
	return count > 0, err
}

// pairLocks hands out one mutex per canonical pair key so that unrelated
// conversations never contend.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pairLocks) get(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}
	return lock
}

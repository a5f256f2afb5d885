package store

import (
	"context"
	"sync"
	"time"

	"github.com/kodbank/backend/internal/models"
)

// MemoryUserStore keeps accounts in process memory. Returned accounts are
// copies; callers never alias internal state.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*models.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryUserStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[account.Email]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byID[account.ID]; ok {
		return ErrAlreadyExists
	}

	now := s.now()
	cp := *account
	if cp.Version == 0 {
		cp.Version = 1
	}
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID

	*account = cp
	return nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryUserStore) SetCurrentToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.CurrentToken = token
	return nil
}

// ApplyBalanceChanges validates every change before mutating anything, so a
// failing change leaves all accounts untouched.
func (s *MemoryUserStore) ApplyBalanceChanges(_ context.Context, changes []models.BalanceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]int64, len(changes))
	for _, c := range changes {
		a, ok := s.byID[c.AccountID]
		if !ok {
			return ErrNotFound
		}
		if a.Version != c.ExpectedVersion {
			return ErrVersionConflict
		}
		bal, seen := next[c.AccountID]
		if !seen {
			bal = a.Balance
		}
		bal += c.Delta
		if bal < 0 {
			return ErrNegativeBalance
		}
		next[c.AccountID] = bal
	}

	now := s.now()
	for id, bal := range next {
		a := s.byID[id]
		a.Balance = bal
		a.Version++
		a.UpdatedAt = now
	}
	return nil
}

// TotalBalance sums every balance. Used to check conservation.
func (s *MemoryUserStore) TotalBalance() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, a := range s.byID {
		total += a.Balance
	}
	return total
}

// MemoryTokenStore keeps sessions in process memory. Expired sessions are
// invisible to Get and removed by Sweep.
type MemoryTokenStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	now      func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{sessions: make(map[string]models.Session), now: time.Now}
}

func (s *MemoryTokenStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[session.Token]; ok && !existing.Expired(s.now()) {
		return ErrAlreadyExists
	}
	s.sessions[session.Token] = session
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, token string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok || session.Expired(s.now()) {
		return models.Session{}, ErrNotFound
	}
	return session, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryTokenStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *MemoryTokenStore) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

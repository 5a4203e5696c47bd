package memory

import (
	"context"
	"crypto/ed25519"
	"math"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
)

type store struct {
	mu sync.RWMutex

	// string(address) -> *ledger.Account, kept sorted by the raw address bytes
	accounts *treemap.Map
}

// New returns a new in memory ledger.Store
func New() ledger.Store {
	return &store{
		accounts: treemap.NewWithStringComparator(),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	s.accounts.Clear()
	s.mu.Unlock()
}

// Get implements ledger.Store.Get
func (s *store) Get(_ context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.find(address)
	if item == nil {
		return nil, ledger.ErrAccountNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// Put implements ledger.Store.Put
func (s *store) Put(_ context.Context, record *ledger.Account) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := record.Clone()
	s.accounts.Put(string(record.Address), &cloned)
	return nil
}

// Remove implements ledger.Store.Remove
func (s *store) Remove(_ context.Context, address ed25519.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(address) == nil {
		return ledger.ErrAccountNotFound
	}

	s.accounts.Remove(string(address))
	return nil
}

// Credit implements ledger.Store.Credit
func (s *store) Credit(_ context.Context, address ed25519.PublicKey, lamports uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(address)
	if item == nil {
		item = &ledger.Account{
			Address: append(ed25519.PublicKey(nil), address...),
			Owner:   append(ed25519.PublicKey(nil), system.ProgramKey...),
		}
		if err := item.Validate(); err != nil {
			return err
		}
	}

	if item.Lamports > math.MaxUint64-lamports {
		return ledger.ErrLamportOverflow
	}

	item.Lamports += lamports
	s.accounts.Put(string(item.Address), item)
	return nil
}

// GetAll implements ledger.Store.GetAll
func (s *store) GetAll(_ context.Context) ([]*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*ledger.Account, 0, s.accounts.Size())
	for _, value := range s.accounts.Values() {
		cloned := value.(*ledger.Account).Clone()
		res = append(res, &cloned)
	}
	return res, nil
}

func (s *store) find(address ed25519.PublicKey) *ledger.Account {
	value, ok := s.accounts.Get(string(address))
	if !ok {
		return nil
	}
	return value.(*ledger.Account)
}

package datastore

import (
	"slices"
	"sync"
)

var _ MutableAddressRefStore = &MemoryAddressRefStore{}

// MemoryAddressRefStore is an in memory MutableAddressRefStore. It is safe for concurrent use.
type MemoryAddressRefStore struct {
	mu      sync.RWMutex
	Records []AddressRef `json:"records"`
}

// NewMemoryAddressRefStore creates a new empty MemoryAddressRefStore.
func NewMemoryAddressRefStore() *MemoryAddressRefStore {
	return &MemoryAddressRefStore{Records: []AddressRef{}}
}

// indexOf returns the index of the record with the provided key, or -1 if not found.
func (s *MemoryAddressRefStore) indexOf(key AddressRefKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Get returns the record with the provided key, or ErrAddressRefNotFound.
func (s *MemoryAddressRefStore) Get(key AddressRefKey) (AddressRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return AddressRef{}, ErrAddressRefNotFound
	}

	return s.Records[idx], nil
}

// Fetch returns a copy of all records.
func (s *MemoryAddressRefStore) Fetch() ([]AddressRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.Records), nil
}

// Add inserts a new record. It fails with ErrAddressRefExists when a record with the same key is
// already present.
func (s *MemoryAddressRefStore) Add(record AddressRef) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(record.Key()) != -1 {
		return ErrAddressRefExists
	}
	s.Records = append(s.Records, record)

	return nil
}

// Upsert inserts the record or replaces the one with the same key.
func (s *MemoryAddressRefStore) Upsert(record AddressRef) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(record.Key()); idx != -1 {
		s.Records[idx] = record
		return nil
	}
	s.Records = append(s.Records, record)

	return nil
}

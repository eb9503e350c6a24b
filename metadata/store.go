// Package metadata builds ticket metadata documents for minting and keeps
// them under content keys.
package metadata

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("metadata not found")

// Metadata is an ERC-721 metadata document.
type Metadata struct {
	Name        string      `json:"name" bson:"name"`
	Description string      `json:"description" bson:"description"`
	Image       string      `json:"image" bson:"image"`
	Attributes  []Attribute `json:"attributes" bson:"attributes"`
}

type Attribute struct {
	TraitType string `json:"trait_type" bson:"traitType"`
	Value     string `json:"value" bson:"value"`
}

// Store maps content keys to metadata documents. Put of an existing key
// replaces the document.
type Store interface {
	Put(ctx context.Context, key string, m *Metadata) error
	Get(ctx context.Context, key string) (*Metadata, error)
}

// MemoryStore keeps documents for the life of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Metadata
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Metadata)}
}

func (s *MemoryStore) Put(_ context.Context, key string, m *Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = clone(m)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	c := clone(&m)
	return &c, nil
}

func clone(m *Metadata) Metadata {
	c := *m
	c.Attributes = append([]Attribute(nil), m.Attributes...)
	return c
}

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/threadrunner/thread"
)

// ThreadStore is the persistence contract for Thread Model state.
// Implementations strip the transient system message on save; re-injecting
// it on load is NOT done here — callers own system-prompt injection, the
// store only persists what AddMessage produced.
type ThreadStore interface {
	Initialize(ctx context.Context) error
	Save(ctx context.Context, th *thread.Thread) error
	Get(ctx context.Context, threadID string) (*thread.Thread, error)
	Delete(ctx context.Context, threadID string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*thread.Thread, error)
	ListRecent(ctx context.Context, limit int) ([]*thread.Thread, error)
	FindByAttributes(ctx context.Context, attributes map[string]interface{}) ([]*thread.Thread, error)
	FindBySource(ctx context.Context, sourceName string, properties map[string]interface{}) ([]*thread.Thread, error)
}

// MemoryThreadStore is an in-process ThreadStore backed by a map, the
// default backend when no thread store backend (or "memory") is configured.
type MemoryThreadStore struct {
	mu        sync.RWMutex
	threads   map[string]*thread.Thread
	fileStore FileStore
}

func NewMemoryThreadStore() *MemoryThreadStore {
	return &MemoryThreadStore{threads: map[string]*thread.Thread{}}
}

// NewMemoryThreadStoreWithFileStore wires a FileStore so Save can persist
// any not-yet-stored attachment bytes before committing the thread record.
func NewMemoryThreadStoreWithFileStore(fs FileStore) *MemoryThreadStore {
	return &MemoryThreadStore{threads: map[string]*thread.Thread{}, fileStore: fs}
}

func (s *MemoryThreadStore) Initialize(ctx context.Context) error { return nil }

// Save strips the transient system message and, if a FileStore is configured, ensures every
// attachment is written to it before the thread record is committed.
func (s *MemoryThreadStore) Save(ctx context.Context, th *thread.Thread) error {
	if th == nil || th.ID == "" {
		return newError("MemoryThreadStore", "Save", "thread must have a non-empty id", nil)
	}
	if err := ensureAttachmentsStored(ctx, th, s.fileStore); err != nil {
		return newError("MemoryThreadStore", "Save", "failed to persist attachments", err)
	}

	persisted := stripSystemMessages(th)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[th.ID] = persisted
	return nil
}

func (s *MemoryThreadStore) Get(ctx context.Context, threadID string) (*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}
	return th, nil
}

func (s *MemoryThreadStore) Delete(ctx context.Context, threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return false, nil
	}
	delete(s.threads, threadID)
	return true, nil
}

func (s *MemoryThreadStore) List(ctx context.Context, limit, offset int) ([]*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedByUpdated()
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryThreadStore) ListRecent(ctx context.Context, limit int) ([]*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedByUpdated()
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryThreadStore) FindByAttributes(ctx context.Context, attributes map[string]interface{}) ([]*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*thread.Thread
	for _, th := range s.threads {
		if matchesAll(th.Attributes, attributes) {
			out = append(out, th)
		}
	}
	return out, nil
}

func (s *MemoryThreadStore) FindBySource(ctx context.Context, sourceName string, properties map[string]interface{}) ([]*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*thread.Thread
	for _, th := range s.threads {
		name, _ := th.Source["name"].(string)
		if name != sourceName {
			continue
		}
		if matchesAll(th.Source, properties) {
			out = append(out, th)
		}
	}
	return out, nil
}

func matchesAll(have, want map[string]interface{}) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func (s *MemoryThreadStore) sortedByUpdated() []*thread.Thread {
	all := make([]*thread.Thread, 0, len(s.threads))
	for _, th := range s.threads {
		all = append(all, th)
	}
	sort.Slice(all, func(i, j int) bool {
		return updatedOrCreated(all[i]).After(updatedOrCreated(all[j]))
	})
	return all
}

func updatedOrCreated(th *thread.Thread) time.Time {
	if !th.UpdatedAt.IsZero() {
		return th.UpdatedAt
	}
	return th.CreatedAt
}

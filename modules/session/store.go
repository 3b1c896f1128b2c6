package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"persona-remixer-server/modules/common/apperr"
)

// BusyLockTTL - 진행 중인 호출이 주기적으로 연장, 프로세스가 죽으면 이 시간 뒤 자동 해제
const BusyLockTTL = 10 * time.Minute

const (
	keyPrefixSession = "remix:session:"
	keyPrefixBusy    = "remix:busy:"
)

// Store - 세션 저장소 (만료되는 임시 저장소, 영속성 없음)
type Store interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, st State) error
	Delete(ctx context.Context, id string) error
	// Acquire - 세션당 하나의 생성 요청만 허용 (이미 잡혀 있으면 false)
	Acquire(ctx context.Context, id string) (bool, error)
	// Refresh - 잡고 있는 잠금의 TTL 연장 (잠금이 없으면 아무것도 안 함)
	Refresh(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// MemoryStore - go-cache 기반 단일 프로세스 저장소
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryStore - TTL 이 지난 세션은 janitor 가 정리
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(ttl, ttl/4+time.Minute),
		ttl:   ttl,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (State, error) {
	v, ok := m.cache.Get(keyPrefixSession + id)
	if !ok {
		return State{}, fmt.Errorf("%w: %s", apperr.ErrSessionNotFound, id)
	}
	st, ok := v.(State)
	if !ok {
		return State{}, fmt.Errorf("unexpected session value type %T", v)
	}
	return st.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, st State) error {
	m.cache.Set(keyPrefixSession+st.ID, st.clone(), m.ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(keyPrefixSession + id)
	m.cache.Delete(keyPrefixBusy + id)
	return nil
}

func (m *MemoryStore) Acquire(_ context.Context, id string) (bool, error) {
	// Add 는 키가 이미 있으면 실패하므로 원자적 잠금으로 사용
	if err := m.cache.Add(keyPrefixBusy+id, true, BusyLockTTL); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) Refresh(_ context.Context, id string) error {
	// Replace 는 키가 없으면 실패 (이미 해제된 잠금은 되살리지 않음)
	_ = m.cache.Replace(keyPrefixBusy+id, true, BusyLockTTL)
	return nil
}

func (m *MemoryStore) Release(_ context.Context, id string) error {
	m.cache.Delete(keyPrefixBusy + id)
	return nil
}

// Len - 현재 보관 중인 세션 수 (잠금 키 제외)
func (m *MemoryStore) Len() int {
	n := 0
	for key := range m.cache.Items() {
		if strings.HasPrefix(key, keyPrefixSession) {
			n++
		}
	}
	return n
}

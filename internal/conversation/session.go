package conversation

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"pm-intelligence/internal/common/keylock"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
	"pm-intelligence/internal/query/convctx"
)

const (
	DefaultSessionTTL    = 60 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Session is the state carried across the turns of one conversation. It is
// only read or written while the conversation lock is held.
type Session struct {
	ID          string
	User        string
	Context     *convctx.Context
	Confidences []float64
	Sectors     []string
	Geographies []string
	CreatedAt   time.Time
	LastActive  time.Time
}

func (s *Session) recordConfidence(c float64, window int) {
	s.Confidences = append(s.Confidences, c)
	if len(s.Confidences) > window {
		s.Confidences = s.Confidences[len(s.Confidences)-window:]
	}
}

func addUnique(list []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen := false
		for _, existing := range list {
			if strings.EqualFold(existing, v) {
				seen = true
				break
			}
		}
		if !seen {
			list = append(list, v)
		}
	}
	return list
}

// SessionStore holds sessions in a TTL map. Each access refreshes the TTL;
// a janitor sweeps expired sessions.
type SessionStore struct {
	items  *cache.Cache
	ttl    time.Duration
	locks  *keylock.KeyLock
	logger logger.Logger
}

func NewSessionStore(ttl, sweep time.Duration, log logger.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	s := &SessionStore{
		items:  cache.New(ttl, sweep),
		ttl:    ttl,
		locks:  keylock.New(),
		logger: logger.ForComponent(log, "session-store"),
	}
	s.items.OnEvicted(func(id string, _ interface{}) {
		metrics.ActiveSessions.Set(float64(s.items.ItemCount()))
		s.logger.Debug("session expired", map[string]interface{}{
			"conversationId": id,
		})
	})
	return s
}

// Lock serializes turns of one conversation.
func (s *SessionStore) Lock(id string) func() {
	return s.locks.Lock(id)
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (s *SessionStore) Put(sess *Session) {
	s.items.Set(sess.ID, sess, s.ttl)
	metrics.ActiveSessions.Set(float64(s.items.ItemCount()))
}

func (s *SessionStore) Delete(id string) {
	s.items.Delete(id)
}

// Len counts stored sessions, including expired ones not yet swept.
func (s *SessionStore) Len() int {
	return s.items.ItemCount()
}

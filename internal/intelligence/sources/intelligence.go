// Package sources scores evidence by the credibility of where it came from
// and combines multiple sources into a single confidence.
package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
	"pm-intelligence/internal/models"
)

const (
	MinAuthority = 0.1
	MaxAuthority = 0.98

	// MaxConfidence caps any combined confidence.
	MaxConfidence = 0.95

	PerformanceWindow = 10
	HalfLifeDays      = 30.0

	baseWeight        = 0.7
	performanceWeight = 0.3

	consensusBoost      = 1.2
	consensusRatio      = 0.8
	consensusMinSources = 3
	DefaultCacheSize    = 1024
	DefaultCacheTTL     = 30 * time.Minute
)

var (
	ErrNoSources         = errors.New("no sources supplied")
	ErrUnknownSourceType = errors.New("unknown source type")
)

// Outcome is one recorded validation result for a source type.
type Outcome struct {
	SourceType string
	Success    bool
	Score      float64
	RecordedAt time.Time
}

// PerformanceStore persists outcomes so windows survive restarts.
type PerformanceStore interface {
	RecordOutcome(ctx context.Context, o Outcome) error
	RecentOutcomes(ctx context.Context, perType int) (map[string][]float64, error)
}

type Intelligence struct {
	registry *Registry
	store    PerformanceStore
	now      func() time.Time
	logger   logger.Logger

	mu           sync.RWMutex
	registeredAt map[string]time.Time
	performance  map[string][]float64

	cacheSize int
	cacheTTL  time.Duration
	cache     *expirable.LRU[string, ValidationResult]
}

type Option func(*Intelligence)

func WithClock(now func() time.Time) Option {
	return func(i *Intelligence) { i.now = now }
}

func WithPerformanceStore(s PerformanceStore) Option {
	return func(i *Intelligence) { i.store = s }
}

func WithValidationCache(size int, ttl time.Duration) Option {
	return func(i *Intelligence) {
		if size > 0 {
			i.cacheSize = size
		}
		if ttl > 0 {
			i.cacheTTL = ttl
		}
	}
}

// New registers every type of reg at the current clock time.
func New(reg *Registry, log logger.Logger, opts ...Option) *Intelligence {
	if reg == nil {
		reg = DefaultRegistry()
	}
	i := &Intelligence{
		registry:     reg,
		now:          time.Now,
		logger:       logger.ForComponent(log, "source-intelligence"),
		registeredAt: map[string]time.Time{},
		performance:  map[string][]float64{},
		cacheSize:    DefaultCacheSize,
		cacheTTL:     DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.cache = expirable.NewLRU[string, ValidationResult](i.cacheSize, nil, i.cacheTTL)

	at := i.now()
	for _, name := range reg.Names() {
		i.registeredAt[name] = at
	}
	return i
}

func (i *Intelligence) Registry() *Registry { return i.registry }

// Authority is the current credibility of a source type in
// [MinAuthority, MaxAuthority]. Unknown types get the floor.
func (i *Intelligence) Authority(sourceType string) float64 {
	st, ok := i.registry.Lookup(sourceType)
	if !ok {
		return MinAuthority
	}

	i.mu.RLock()
	window := i.performance[sourceType]
	registered := i.registeredAt[sourceType]
	i.mu.RUnlock()

	authority := st.BaseAuthority
	if len(window) > 0 {
		authority = baseWeight*st.BaseAuthority + performanceWeight*mean(window)
	}
	if st.Category.Decays() {
		days := i.now().Sub(registered).Hours() / 24
		if days > 0 {
			authority *= math.Pow(0.5, days/HalfLifeDays)
		}
	}
	return clamp(authority, MinAuthority, MaxAuthority)
}

// resolve returns the authority for one source, preferring an explicit value.
func (i *Intelligence) resolve(sourceType string, explicit float64) float64 {
	if explicit > 0 {
		return clamp(explicit, 0, 1)
	}
	return i.Authority(sourceType)
}

func (i *Intelligence) profile(sourceType string) SourceType {
	if st, ok := i.registry.Lookup(sourceType); ok {
		return st
	}
	return SourceType{Name: sourceType, Category: CategoryGenerated, RequiresVerification: true}
}

// CreateWeightedRelationship combines sources into one edge. Confidence is
// the mean source authority capped at MaxConfidence; metadata flags are ORs
// over the source list.
func (i *Intelligence) CreateWeightedRelationship(from, to string, relType models.RelationshipType, evidence []models.SourceEvidence) (*models.Relationship, error) {
	if len(evidence) == 0 {
		return nil, apperrors.NewNoSourcesError(fmt.Sprintf("%s -[%s]-> %s", from, relType, to)).WithCause(ErrNoSources)
	}
	if !relType.Valid() {
		return nil, apperrors.NewInputValidationError(fmt.Sprintf("invalid relationship type %q", relType))
	}

	now := i.now().UTC()
	resolved := make([]models.SourceEvidence, len(evidence))
	var total float64
	meta := models.RelationshipMetadata{SourceCount: len(evidence)}

	for idx, ev := range evidence {
		ev.Authority = i.resolve(ev.SourceType, ev.Authority)
		if ev.Timestamp.IsZero() {
			ev.Timestamp = now
		}
		resolved[idx] = ev
		total += ev.Authority

		st := i.profile(ev.SourceType)
		if st.Category.Authoritative() {
			meta.HasOfficialSource = true
		}
		if st.RequiresVerification {
			meta.RequiresVerification = true
		}
	}
	meta.AverageAuthority = round(total/float64(len(evidence)), 4)

	return &models.Relationship{
		ID:         uuid.New().String(),
		From:       from,
		To:         to,
		Type:       relType,
		Confidence: math.Min(meta.AverageAuthority, MaxConfidence),
		Sources:    resolved,
		Metadata:   meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// UpdateSourcePerformance appends one outcome to the type's window. accuracy,
// when given, is the score; otherwise success counts 1 and failure 0.
func (i *Intelligence) UpdateSourcePerformance(ctx context.Context, sourceType string, success bool, accuracy *float64) error {
	if _, ok := i.registry.Lookup(sourceType); !ok {
		return apperrors.NewUnknownSourceTypeError(sourceType).WithCause(ErrUnknownSourceType)
	}

	score := 0.0
	if success {
		score = 1
	}
	if accuracy != nil {
		score = clamp(*accuracy, 0, 1)
	}

	i.mu.Lock()
	i.performance[sourceType] = pushWindow(i.performance[sourceType], score)
	i.mu.Unlock()

	// authorities moved; cached validations are stale
	i.cache.Purge()

	if i.store != nil {
		o := Outcome{SourceType: sourceType, Success: success, Score: score, RecordedAt: i.now().UTC()}
		if err := i.store.RecordOutcome(ctx, o); err != nil {
			i.logger.Warn("failed to persist source outcome", map[string]interface{}{
				"sourceType": sourceType,
				"error":      err,
			})
		}
	}
	return nil
}

// LoadPerformance rehydrates windows from the performance store.
func (i *Intelligence) LoadPerformance(ctx context.Context) error {
	if i.store == nil {
		return nil
	}
	windows, err := i.store.RecentOutcomes(ctx, PerformanceWindow)
	if err != nil {
		return fmt.Errorf("load source performance: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	loaded := 0
	for name, scores := range windows {
		if _, ok := i.registry.Lookup(name); !ok {
			continue
		}
		var w []float64
		for _, s := range scores {
			w = pushWindow(w, clamp(s, 0, 1))
		}
		i.performance[name] = w
		loaded++
	}
	i.logger.Info("source performance loaded", map[string]interface{}{"sourceTypes": loaded})
	return nil
}

// Profile is a read-only view of one source type's current standing.
type Profile struct {
	SourceType
	Authority float64 `json:"authority"`
	Outcomes  int     `json:"outcomes"`
}

func (i *Intelligence) Profiles() []Profile {
	names := i.registry.Names()
	out := make([]Profile, 0, len(names))
	for _, name := range names {
		st, _ := i.registry.Lookup(name)
		i.mu.RLock()
		n := len(i.performance[name])
		i.mu.RUnlock()
		out = append(out, Profile{SourceType: st, Authority: i.Authority(name), Outcomes: n})
	}
	return out
}

func pushWindow(w []float64, v float64) []float64 {
	w = append(w, v)
	if len(w) > PerformanceWindow {
		w = append([]float64(nil), w[len(w)-PerformanceWindow:]...)
	}
	return w
}

// claimKey identifies a validation by the claim and its sources. Source order
// does not change the outcome, so the list is sorted before hashing.
func claimKey(c Claim, srcs []ClaimSource) string {
	sorted := append([]ClaimSource(nil), srcs...)
	sort.Slice(sorted, func(a, b int) bool {
		x, y := sorted[a], sorted[b]
		if x.SourceType != y.SourceType {
			return x.SourceType < y.SourceType
		}
		if x.Agrees != y.Agrees {
			return y.Agrees
		}
		return x.Authority < y.Authority
	})
	raw, _ := json.Marshal(struct {
		Claim   Claim         `json:"claim"`
		Sources []ClaimSource `json:"sources"`
	}{c, sorted})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func observeValidation(consensus Consensus, cached bool) {
	c := "false"
	if cached {
		c = "true"
	}
	metrics.SourceValidations.WithLabelValues(string(consensus), c).Inc()
}

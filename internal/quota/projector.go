// Package quota computes the denormalized used/remaining spend view of a
// provider. The numbers are a cached projection over the usage ledger,
// never a source of truth: every snapshot is derived from the ledger's
// monthly window and cached with a short TTL.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/modelfleet/governd/internal/models"
	"github.com/modelfleet/governd/internal/usage"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultTTL is the projection cache lifetime when none is configured.
const DefaultTTL = 30 * time.Second

const cacheKeyPrefix = "governd:quota:"

// Projection is a provider's monthly spend position.
type Projection struct {
	ProviderID string    `json:"provider_id"` // Projected provider.
	Limit      float64   `json:"limit"`       // Monthly spend limit; 0 means unlimited.
	Used       float64   `json:"used"`        // Spend inside the rolling monthly window.
	Remaining  float64   `json:"remaining"`   // Limit minus used, floored at zero.
	Unlimited  bool      `json:"unlimited"`   // True when no limit is set.
	ComputedAt time.Time `json:"computed_at"` // When the projection was derived.
}

// Projector derives and caches quota projections. When a Redis client is
// configured the cache is shared across processes; otherwise a local TTL
// map is used.
type Projector struct {
	db     *gorm.DB
	ledger *usage.Ledger
	rdb    *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]Projection
}

// NewProjector constructs a Projector. rdb may be nil; ttl <= 0 selects
// DefaultTTL.
func NewProjector(db *gorm.DB, ledger *usage.Ledger, rdb *redis.Client, ttl time.Duration) *Projector {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Projector{
		db:     db,
		ledger: ledger,
		rdb:    rdb,
		ttl:    ttl,
		local:  make(map[string]Projection),
	}
}

// Snapshot returns the provider's quota projection, refreshing it from
// the usage ledger when the cached copy is missing or stale.
func (p *Projector) Snapshot(ctx context.Context, providerID string) (Projection, error) {
	if cached, ok := p.lookup(ctx, providerID); ok {
		return cached, nil
	}

	var provider models.Provider
	if errFind := p.db.WithContext(ctx).First(&provider, "id = ?", providerID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Projection{}, fmt.Errorf("quota: provider %s: %w", providerID, models.ErrNotFound)
		}
		return Projection{}, fmt.Errorf("quota: lookup provider: %w", errFind)
	}

	now := time.Now().UTC()
	used, errSum := p.ledger.SumCost(ctx, providerID, nil, usage.PeriodMonth.Start(now))
	if errSum != nil {
		return Projection{}, errSum
	}

	projection := Projection{
		ProviderID: providerID,
		Limit:      provider.MonthlyQuota,
		Used:       used,
		Unlimited:  provider.MonthlyQuota == 0,
		ComputedAt: now,
	}
	if !projection.Unlimited {
		projection.Remaining = projection.Limit - used
		if projection.Remaining < 0 {
			projection.Remaining = 0
		}
	}

	p.store(ctx, projection)
	return projection, nil
}

// Invalidate drops the cached projection for a provider. The usage
// ledger calls this after every append so the next read recomputes.
func (p *Projector) Invalidate(providerID string) {
	p.mu.Lock()
	delete(p.local, providerID)
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if errDel := p.rdb.Del(ctx, cacheKeyPrefix+providerID).Err(); errDel != nil {
		log.WithError(errDel).Debug("quota: invalidate cache entry")
	}
}

func (p *Projector) lookup(ctx context.Context, providerID string) (Projection, bool) {
	if p.rdb != nil {
		raw, errGet := p.rdb.Get(ctx, cacheKeyPrefix+providerID).Bytes()
		if errGet == nil {
			var cached Projection
			if errDecode := json.Unmarshal(raw, &cached); errDecode == nil {
				return cached, true
			}
		} else if !errors.Is(errGet, redis.Nil) {
			log.WithError(errGet).Debug("quota: read cache entry")
		}
		return Projection{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cached, ok := p.local[providerID]
	if !ok || time.Since(cached.ComputedAt) > p.ttl {
		return Projection{}, false
	}
	return cached, true
}

func (p *Projector) store(ctx context.Context, projection Projection) {
	if p.rdb != nil {
		raw, errEncode := json.Marshal(projection)
		if errEncode != nil {
			return
		}
		if errSet := p.rdb.Set(ctx, cacheKeyPrefix+projection.ProviderID, raw, p.ttl).Err(); errSet != nil {
			log.WithError(errSet).Debug("quota: write cache entry")
		}
		return
	}

	p.mu.Lock()
	p.local[projection.ProviderID] = projection
	p.mu.Unlock()
}

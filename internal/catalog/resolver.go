// Package catalog is the engine's read-only view of the dish and extra
// catalogs, with a short-TTL redis cache in front of Postgres. The engine
// never writes catalog data.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/petitplat/api/internal/database"
	"github.com/petitplat/api/internal/edit"
	"github.com/shopspring/decimal"
)

// cacheTTL is the freshness window for catalog reads. Staff edit the catalog
// rarely; a stale price for this long is acceptable during an edit session.
const cacheTTL = 45 * time.Second

// Store defines the database methods the resolver needs.
// Satisfied by *database.Queries; narrow interface for testability.
type Store interface {
	GetDish(ctx context.Context, id int64) (database.Dish, error)
	GetExtra(ctx context.Context, id int64) (database.Extra, error)
	ListDishes(ctx context.Context) ([]database.Dish, error)
	ListExtras(ctx context.Context) ([]database.Extra, error)
}

// DishInfo is the API-facing dish shape.
type DishInfo struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	PhotoURL  string          `json:"photo_url,omitempty"`
	Days      [7]bool         `json:"days"` // Monday first
	Exhausted bool            `json:"exhausted"`
}

// ExtraInfo is the API-facing extra shape.
type ExtraInfo struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
	PhotoURL  string          `json:"photo_url,omitempty"`
}

// entry is the cached per-item record shared by the three Resolve methods.
type entry struct {
	Found bool   `json:"found"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Photo string `json:"photo"`
}

// Resolver resolves display fields for classified line references. Pure
// lookup: a missing catalog row yields zero values, not an error; only
// infrastructure failures propagate.
type Resolver struct {
	store Store
	rdb   *redis.Client // nil disables caching
}

func NewResolver(store Store, rdb *redis.Client) *Resolver {
	return &Resolver{store: store, rdb: rdb}
}

func (r *Resolver) ResolveName(ctx context.Context, kind edit.Kind, id int64) (string, error) {
	e, err := r.lookup(ctx, kind, id)
	if err != nil {
		return "", err
	}
	return e.Name, nil
}

func (r *Resolver) ResolvePrice(ctx context.Context, kind edit.Kind, id int64) (decimal.Decimal, error) {
	e, err := r.lookup(ctx, kind, id)
	if err != nil {
		return decimal.Zero, err
	}
	if e.Price == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(e.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse cached price %q: %w", e.Price, err)
	}
	return d, nil
}

func (r *Resolver) ResolvePhoto(ctx context.Context, kind edit.Kind, id int64) (string, error) {
	e, err := r.lookup(ctx, kind, id)
	if err != nil {
		return "", err
	}
	return e.Photo, nil
}

// lookup serves one catalog entry, cache first. Redis failures degrade to a
// direct database read; negative results are cached too so a cart full of
// dangling references does not hammer Postgres.
func (r *Resolver) lookup(ctx context.Context, kind edit.Kind, id int64) (entry, error) {
	key := fmt.Sprintf("catalog:%s:%d", kind, id)

	if r.rdb != nil {
		raw, err := r.rdb.Get(ctx, key).Result()
		if err == nil {
			var e entry
			if err := json.Unmarshal([]byte(raw), &e); err == nil {
				return e, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: catalog cache get %s: %v", key, err)
		}
	}

	e, err := r.fetch(ctx, kind, id)
	if err != nil {
		return entry{}, err
	}

	if r.rdb != nil {
		raw, _ := json.Marshal(e)
		if err := r.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
			log.Printf("WARN: catalog cache set %s: %v", key, err)
		}
	}

	return e, nil
}

func (r *Resolver) fetch(ctx context.Context, kind edit.Kind, id int64) (entry, error) {
	switch kind {
	case edit.KindDish:
		d, err := r.store.GetDish(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return entry{}, nil
			}
			return entry{}, fmt.Errorf("get dish %d: %w", id, err)
		}
		return entry{Found: true, Name: d.Name, Price: numericToString(d.Price), Photo: d.PhotoUrl.String}, nil
	case edit.KindExtra:
		e, err := r.store.GetExtra(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return entry{}, nil
			}
			return entry{}, fmt.Errorf("get extra %d: %w", id, err)
		}
		return entry{Found: true, Name: e.Name, Price: numericToString(e.Price), Photo: e.PhotoUrl.String}, nil
	}
	return entry{}, fmt.Errorf("unknown catalog kind %d", kind)
}

// Dishes lists the dish catalog through the same cache.
func (r *Resolver) Dishes(ctx context.Context) ([]DishInfo, error) {
	const key = "catalog:dishes"

	if r.rdb != nil {
		raw, err := r.rdb.Get(ctx, key).Result()
		if err == nil {
			var infos []DishInfo
			if err := json.Unmarshal([]byte(raw), &infos); err == nil {
				return infos, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: catalog cache get %s: %v", key, err)
		}
	}

	rows, err := r.store.ListDishes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	infos := make([]DishInfo, len(rows))
	for i, d := range rows {
		infos[i] = DishInfo{
			ID:       d.ID,
			Name:     d.Name,
			Price:    numericToDecimal(d.Price),
			PhotoURL: d.PhotoUrl.String,
			Days: [7]bool{
				d.AvailableMon, d.AvailableTue, d.AvailableWed, d.AvailableThu,
				d.AvailableFri, d.AvailableSat, d.AvailableSun,
			},
			Exhausted: d.Exhausted,
		}
	}

	r.cacheList(ctx, key, infos)
	return infos, nil
}

// Extras lists the extras catalog through the same cache.
func (r *Resolver) Extras(ctx context.Context) ([]ExtraInfo, error) {
	const key = "catalog:extras"

	if r.rdb != nil {
		raw, err := r.rdb.Get(ctx, key).Result()
		if err == nil {
			var infos []ExtraInfo
			if err := json.Unmarshal([]byte(raw), &infos); err == nil {
				return infos, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: catalog cache get %s: %v", key, err)
		}
	}

	rows, err := r.store.ListExtras(ctx)
	if err != nil {
		return nil, fmt.Errorf("list extras: %w", err)
	}
	infos := make([]ExtraInfo, len(rows))
	for i, e := range rows {
		infos[i] = ExtraInfo{
			ID:        e.ID,
			Name:      e.Name,
			Price:     numericToDecimal(e.Price),
			Available: e.Available,
			PhotoURL:  e.PhotoUrl.String,
		}
	}

	r.cacheList(ctx, key, infos)
	return infos, nil
}

func (r *Resolver) cacheList(ctx context.Context, key string, v any) {
	if r.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		log.Printf("WARN: catalog cache set %s: %v", key, err)
	}
}

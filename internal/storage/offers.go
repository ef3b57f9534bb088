package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"p2p-exchange-client/internal/model"
	"p2p-exchange-client/internal/stream"
)

const (
	deletePartitionSQL = `DELETE FROM p2p_offers WHERE is_mine = ?`

	searchMyOffersSQL = `is_mine = ? AND (
        LOWER(coin) LIKE ? ESCAPE '\' OR
        LOWER(details) LIKE ? ESCAPE '\' OR
        LOWER(message) LIKE ? ESCAPE '\' OR
        LOWER(status) LIKE ? ESCAPE '\'
    )`

	upsertBatchSize = 200
)

// OfferReader is the read side of the offer cache.
type OfferReader interface {
	MyOffers(ctx context.Context) ([]model.Offer, error)
	MarketplaceOffers(ctx context.Context) ([]model.Offer, error)
	OfferByUUID(ctx context.Context, uuid string) (model.Offer, error)
	SearchMyOffers(ctx context.Context, text string) ([]model.Offer, error)
}

var _ OfferReader = (*OfferCache)(nil)

// OfferCache persists offers in two partitions: the user's own offers and
// the marketplace listing. An offer belongs to exactly one partition.
type OfferCache struct {
	db     *gorm.DB
	logger zerolog.Logger

	mine   *stream.Stream[[]model.Offer]
	market *stream.Stream[[]model.Offer]
}

// NewOfferCache wires the cache onto db.
func NewOfferCache(db *gorm.DB, logger zerolog.Logger) *OfferCache {
	return &OfferCache{
		db:     db,
		logger: logger.With().Str("component", "offer_cache").Logger(),
		mine:   stream.New[[]model.Offer](),
		market: stream.New[[]model.Offer](),
	}
}

// MyOffers lists the user's offers, newest first.
func (c *OfferCache) MyOffers(ctx context.Context) ([]model.Offer, error) {
	return c.partition(ctx, true)
}

// MarketplaceOffers lists cached marketplace offers, newest first.
func (c *OfferCache) MarketplaceOffers(ctx context.Context) ([]model.Offer, error) {
	return c.partition(ctx, false)
}

// MyOffersStream observes the user's partition. The current contents are
// delivered first.
func (c *OfferCache) MyOffersStream(ctx context.Context) (<-chan []model.Offer, func(), error) {
	return c.subscribe(ctx, true)
}

// MarketplaceOffersStream observes the marketplace partition.
func (c *OfferCache) MarketplaceOffersStream(ctx context.Context) (<-chan []model.Offer, func(), error) {
	return c.subscribe(ctx, false)
}

// ReplaceMyOffers atomically swaps the user's partition for offers.
func (c *OfferCache) ReplaceMyOffers(ctx context.Context, offers []model.Offer, syncTime time.Time) error {
	return c.replace(ctx, true, offers, syncTime)
}

// ReplaceMarketplaceOffers atomically swaps the marketplace partition.
func (c *OfferCache) ReplaceMarketplaceOffers(ctx context.Context, offers []model.Offer, syncTime time.Time) error {
	return c.replace(ctx, false, offers, syncTime)
}

func (c *OfferCache) replace(ctx context.Context, mine bool, offers []model.Offer, syncTime time.Time) error {
	entities := make([]OfferEntity, 0, len(offers))
	seen := make(map[string]struct{}, len(offers))
	for _, o := range offers {
		if _, dup := seen[o.UUID]; dup {
			continue
		}
		seen[o.UUID] = struct{}{}
		o.IsMine = mine
		o.LastSync = syncTime
		e, err := ToEntity(o)
		if err != nil {
			return err
		}
		entities = append(entities, e)
	}

	skipped := 0
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(deletePartitionSQL, mine).Error; err != nil {
			return fmt.Errorf("clear partition: %w", err)
		}
		if len(entities) == 0 {
			return nil
		}
		ids := make([]string, len(entities))
		for i, e := range entities {
			ids[i] = e.UUID
		}
		if mine {
			// own offers listed on the marketplace move into this partition
			if err := tx.Where("uuid IN ?", ids).Delete(&OfferEntity{}).Error; err != nil {
				return fmt.Errorf("claim offers: %w", err)
			}
		} else {
			var owned []string
			if err := tx.Model(&OfferEntity{}).Where("is_mine = ? AND uuid IN ?", true, ids).
				Pluck("uuid", &owned).Error; err != nil {
				return fmt.Errorf("load own offers: %w", err)
			}
			entities = withoutUUIDs(entities, owned)
			skipped = len(owned)
			if len(entities) == 0 {
				return nil
			}
		}
		if err := tx.CreateInBatches(&entities, upsertBatchSize).Error; err != nil {
			return fmt.Errorf("insert offers: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace offers: %w", err)
	}

	c.logger.Debug().Bool("mine", mine).Int("count", len(entities)).Int("skipped", skipped).Msg("partition replaced")
	c.publish(ctx)
	return nil
}

func withoutUUIDs(entities []OfferEntity, drop []string) []OfferEntity {
	if len(drop) == 0 {
		return entities
	}
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	kept := entities[:0]
	for _, e := range entities {
		if _, ok := skip[e.UUID]; !ok {
			kept = append(kept, e)
		}
	}
	return kept
}

// UpsertOffer inserts or replaces a single offer.
func (c *OfferCache) UpsertOffer(ctx context.Context, offer model.Offer) error {
	e, err := ToEntity(offer)
	if err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&e).Error; err != nil {
		return fmt.Errorf("upsert offer %s: %w", offer.UUID, err)
	}
	c.publish(ctx)
	return nil
}

// OfferByUUID returns a cached offer or ErrNotFound.
func (c *OfferCache) OfferByUUID(ctx context.Context, uuid string) (model.Offer, error) {
	var e OfferEntity
	if err := c.db.WithContext(ctx).Where("uuid = ?", uuid).Take(&e).Error; err != nil {
		return model.Offer{}, notFound(err)
	}
	return ToModel(e)
}

// ExistsOffer reports whether uuid is cached in either partition.
func (c *OfferCache) ExistsOffer(ctx context.Context, uuid string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&OfferEntity{}).Where("uuid = ?", uuid).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count offer: %w", err)
	}
	return count > 0, nil
}

// UpdateOfferStatus sets the server status and last-sync time. Partition
// membership is left as is.
func (c *OfferCache) UpdateOfferStatus(ctx context.Context, uuid, status string, syncTime time.Time) error {
	res := c.db.WithContext(ctx).Model(&OfferEntity{}).Where("uuid = ?", uuid).
		Updates(map[string]any{"status": status, "last_sync": syncTime})
	if res.Error != nil {
		return fmt.Errorf("update offer status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	c.publish(ctx)
	return nil
}

// UpdateLocalStatus sets or clears (nil) the local status override.
func (c *OfferCache) UpdateLocalStatus(ctx context.Context, uuid string, status *string) error {
	res := c.db.WithContext(ctx).Model(&OfferEntity{}).Where("uuid = ?", uuid).
		Update("local_status", status)
	if res.Error != nil {
		return fmt.Errorf("update local status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	c.publish(ctx)
	return nil
}

// DeleteOldOffers evicts offers last synced before threshold.
func (c *OfferCache) DeleteOldOffers(ctx context.Context, threshold time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("last_sync < ?", threshold).Delete(&OfferEntity{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old offers: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		c.publish(ctx)
	}
	return res.RowsAffected, nil
}

// SearchMyOffers matches text case-insensitively against coin, details,
// message and status of the user's offers.
func (c *OfferCache) SearchMyOffers(ctx context.Context, text string) ([]model.Offer, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(text))) + "%"

	var rows []OfferEntity
	err := c.db.WithContext(ctx).
		Where(searchMyOffersSQL, true, pattern, pattern, pattern, pattern).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search offers: %w", err)
	}
	return toModels(rows)
}

// CountOffers returns the number of cached offers per partition.
func (c *OfferCache) CountOffers(ctx context.Context) (mine, market int64, err error) {
	db := c.db.WithContext(ctx).Model(&OfferEntity{})
	if err = db.Where("is_mine = ?", true).Count(&mine).Error; err != nil {
		return 0, 0, fmt.Errorf("count offers: %w", err)
	}
	db = c.db.WithContext(ctx).Model(&OfferEntity{})
	if err = db.Where("is_mine = ?", false).Count(&market).Error; err != nil {
		return 0, 0, fmt.Errorf("count offers: %w", err)
	}
	return mine, market, nil
}

func (c *OfferCache) partition(ctx context.Context, mine bool) ([]model.Offer, error) {
	var rows []OfferEntity
	err := c.db.WithContext(ctx).
		Where("is_mine = ?", mine).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return toModels(rows)
}

func (c *OfferCache) subscribe(ctx context.Context, mine bool) (<-chan []model.Offer, func(), error) {
	s := c.market
	if mine {
		s = c.mine
	}
	if _, ok := s.Latest(); !ok {
		offers, err := c.partition(ctx, mine)
		if err != nil {
			return nil, nil, err
		}
		s.Publish(offers)
	}
	ch, cancel := s.Subscribe()
	return ch, cancel, nil
}

// publish re-reads both partitions and pushes them to observers. A single
// write may move a row across partitions.
func (c *OfferCache) publish(ctx context.Context) {
	for _, mine := range []bool{true, false} {
		offers, err := c.partition(ctx, mine)
		if err != nil {
			c.logger.Warn().Err(err).Bool("mine", mine).Msg("refresh offer stream")
			continue
		}
		if mine {
			c.mine.Publish(offers)
		} else {
			c.market.Publish(offers)
		}
	}
}

func (c *OfferCache) close() {
	c.mine.Close()
	c.market.Close()
}

func toModels(rows []OfferEntity) ([]model.Offer, error) {
	out := make([]model.Offer, 0, len(rows))
	for _, r := range rows {
		o, err := ToModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/merchline/matchbox/internal/broker/messages"
	"github.com/merchline/matchbox/internal/cache"
	"github.com/merchline/matchbox/internal/models"
	"github.com/merchline/matchbox/internal/services/matching"
	"github.com/merchline/matchbox/internal/storage/pgorders"
)

const statsKey = "reconcile:stats"

// Validation errors surfaced to the API layer.
var (
	ErrInvalidClassification = errors.New("invalid classification")
	ErrEmptyPatch            = errors.New("nothing to update")
)

type Repository interface {
	GetFulfillmentOrder(ctx context.Context, id int64) (*models.FulfillmentOrder, error)
	ListUnmappedFulfillmentOrders(ctx context.Context, limit, offset int) ([]*models.FulfillmentOrder, int64, error)
	GetStorefrontOrder(ctx context.Context, id int64) (*models.StorefrontOrder, error)
	ListStorefrontCandidates(ctx context.Context, from, to time.Time) ([]*models.StorefrontOrder, error)

	CreateMapping(ctx context.Context, m *models.OrderMapping) error
	GetMapping(ctx context.Context, id uuid.UUID) (*models.OrderMapping, error)
	UpdateMapping(ctx context.Context, id uuid.UUID, patch pgorders.MappingPatch, actor *string) (*models.OrderMapping, error)
	DeleteMapping(ctx context.Context, id uuid.UUID) error
	ListMappings(ctx context.Context, f pgorders.MappingFilters) ([]*pgorders.MappingDetail, int64, error)
	MappingCounts(ctx context.Context) (total, mapped, normal, corrective, gift int64, err error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Service is the read/write API over the order store and the mapping table.
// The actor identity is always an explicit argument, never ambient state.
type Service struct {
	repo     Repository
	scorer   *matching.Scorer
	cache    cache.BytesCache
	statsTTL time.Duration
	producer Producer
	topic    string
}

func New(repo Repository, scorer *matching.Scorer, c cache.BytesCache, statsTTL time.Duration) *Service {
	if scorer == nil {
		scorer = matching.NewScorer(matching.DefaultConfig())
	}
	return &Service{repo: repo, scorer: scorer, cache: c, statsTTL: statsTTL}
}

// WithProducer enables mapping-changed events on the given topic.
func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

// Stats returns the aggregate reconciliation counters, cached best-effort.
func (s *Service) Stats(ctx context.Context) (models.MappingStats, error) {
	if s.cache != nil && s.statsTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, statsKey); err == nil && ok {
			var st models.MappingStats
			if json.Unmarshal(b, &st) == nil {
				return st, nil
			}
		}
	}

	total, mapped, normal, corrective, gift, err := s.repo.MappingCounts(ctx)
	if err != nil {
		return models.MappingStats{}, err
	}

	st := models.MappingStats{
		TotalFulfillmentOrders: total,
		MappedOrders:           mapped,
		UnmappedOrders:         total - mapped,
		NormalOrders:           normal,
		CorrectiveOrders:       corrective,
		GiftOrders:             gift,
	}
	if total > 0 {
		st.MappingPercentage = float64(mapped) / float64(total) * 100
	}

	if s.cache != nil && s.statsTTL > 0 {
		b, _ := json.Marshal(st)
		_ = s.cache.Set(ctx, statsKey, b, s.statsTTL)
	}
	return st, nil
}

// InvalidateStats drops the cached counters. Called after mapping writes and
// on consumed sync-completed events.
func (s *Service) InvalidateStats(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, statsKey)
	}
}

type ListMappingsResult struct {
	Mappings   []*pgorders.MappingDetail `json:"mappings"`
	TotalCount int64                     `json:"totalCount"`
	Stats      models.MappingStats       `json:"stats"`
}

func (s *Service) ListMappings(ctx context.Context, f pgorders.MappingFilters) (*ListMappingsResult, error) {
	if f.Classification != "" && f.Classification != "all" && !models.ValidClassification(f.Classification) {
		return nil, ErrInvalidClassification
	}

	mappings, total, err := s.repo.ListMappings(ctx, f)
	if err != nil {
		return nil, err
	}
	if mappings == nil {
		mappings = []*pgorders.MappingDetail{}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &ListMappingsResult{Mappings: mappings, TotalCount: total, Stats: stats}, nil
}

// UnmappedOrder is one fulfillment order with no mapping row, plus the best
// storefront candidates for it.
type UnmappedOrder struct {
	Order            *models.FulfillmentOrder `json:"order"`
	SuggestedMatches []models.SuggestedMatch  `json:"suggestedMatches"`
}

type ListUnmappedResult struct {
	Orders     []UnmappedOrder `json:"orders"`
	TotalCount int64           `json:"totalCount"`
}

func (s *Service) ListUnmapped(ctx context.Context, limit, offset int) (*ListUnmappedResult, error) {
	orders, total, err := s.repo.ListUnmappedFulfillmentOrders(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]UnmappedOrder, 0, len(orders))
	for _, o := range orders {
		suggestions, err := s.suggestionsFor(ctx, o)
		if err != nil {
			return nil, err
		}
		out = append(out, UnmappedOrder{Order: o, SuggestedMatches: suggestions})
	}

	return &ListUnmappedResult{Orders: out, TotalCount: total}, nil
}

func (s *Service) suggestionsFor(ctx context.Context, o *models.FulfillmentOrder) ([]models.SuggestedMatch, error) {
	from, to := s.scorer.CandidateWindow(o.CreatedAt)
	candidates, err := s.repo.ListStorefrontCandidates(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "load storefront candidates")
	}

	suggestions := s.scorer.Suggest(o, candidates)
	if suggestions == nil {
		suggestions = []models.SuggestedMatch{}
	}
	return suggestions, nil
}

type CreateMappingInput struct {
	FulfillmentOrderID int64
	StorefrontOrderID  *int64
	Classification     string
	Notes              string
}

func (s *Service) CreateMapping(ctx context.Context, actor *string, in CreateMappingInput) (*models.OrderMapping, error) {
	if in.FulfillmentOrderID == 0 {
		return nil, errors.New("fulfillmentOrderId is required")
	}
	if !models.ValidClassification(in.Classification) {
		return nil, ErrInvalidClassification
	}

	if _, err := s.repo.GetFulfillmentOrder(ctx, in.FulfillmentOrderID); err != nil {
		return nil, errors.Wrap(err, "fulfillment order")
	}
	if in.StorefrontOrderID != nil {
		if _, err := s.repo.GetStorefrontOrder(ctx, *in.StorefrontOrderID); err != nil {
			return nil, errors.Wrap(err, "storefront order")
		}
	}

	now := time.Now().UTC()
	m := &models.OrderMapping{
		ID:                 uuid.New(),
		FulfillmentOrderID: in.FulfillmentOrderID,
		StorefrontOrderID:  in.StorefrontOrderID,
		Classification:     in.Classification,
		MappedBy:           actor,
		MappedAt:           now,
		Notes:              in.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.CreateMapping(ctx, m); err != nil {
		return nil, err
	}

	s.InvalidateStats(ctx)
	s.publishMappingChanged(ctx, m, messages.MappingCreated, actor)
	return m, nil
}

func (s *Service) UpdateMapping(ctx context.Context, actor *string, id uuid.UUID, patch pgorders.MappingPatch) (*models.OrderMapping, error) {
	if patch.StorefrontOrderID == nil && !patch.ClearStorefrontOrder &&
		patch.Classification == nil && patch.Notes == nil {
		return nil, ErrEmptyPatch
	}
	if patch.Classification != nil && !models.ValidClassification(*patch.Classification) {
		return nil, ErrInvalidClassification
	}
	if patch.StorefrontOrderID != nil {
		if _, err := s.repo.GetStorefrontOrder(ctx, *patch.StorefrontOrderID); err != nil {
			return nil, errors.Wrap(err, "storefront order")
		}
	}

	m, err := s.repo.UpdateMapping(ctx, id, patch, actor)
	if err != nil {
		return nil, err
	}

	s.InvalidateStats(ctx)
	s.publishMappingChanged(ctx, m, messages.MappingUpdated, actor)
	return m, nil
}

func (s *Service) DeleteMapping(ctx context.Context, actor *string, id uuid.UUID) error {
	m, err := s.repo.GetMapping(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMapping(ctx, id); err != nil {
		return err
	}

	s.InvalidateStats(ctx)
	s.publishMappingChanged(ctx, m, messages.MappingDeleted, actor)
	return nil
}

type AutoMapDetail struct {
	FulfillmentOrderID int64   `json:"fulfillmentOrderId"`
	ExternalID         string  `json:"externalId"`
	StorefrontOrderID  int64   `json:"storefrontOrderId"`
	MatchScore         float64 `json:"matchScore"`
	Status             string  `json:"status"` // mapped | failed
	Error              string  `json:"error,omitempty"`
}

type AutoMapResult struct {
	SuccessfulMappings int             `json:"successfulMappings"`
	FailedMappings     int             `json:"failedMappings"`
	SkippedOrders      int             `json:"skippedOrders"`
	Details            []AutoMapDetail `json:"details"`
}

const autoMapPageSize = 100

// AutoMap walks every unmapped order and creates a normal-classified mapping
// for each one whose best suggestion clears the auto-map threshold. Failures
// on individual orders are recorded and do not stop the run.
func (s *Service) AutoMap(ctx context.Context) (*AutoMapResult, error) {
	// Snapshot the unmapped set before writing anything so that offset
	// pagination stays stable while mappings are created.
	var unmapped []*models.FulfillmentOrder
	for offset := 0; ; offset += autoMapPageSize {
		page, _, err := s.repo.ListUnmappedFulfillmentOrders(ctx, autoMapPageSize, offset)
		if err != nil {
			return nil, err
		}
		unmapped = append(unmapped, page...)
		if len(page) < autoMapPageSize {
			break
		}
	}

	res := &AutoMapResult{Details: []AutoMapDetail{}}
	for _, o := range unmapped {
		suggestions, err := s.suggestionsFor(ctx, o)
		if err != nil {
			res.FailedMappings++
			res.Details = append(res.Details, AutoMapDetail{
				FulfillmentOrderID: o.ID,
				ExternalID:         o.ExternalID,
				Status:             "failed",
				Error:              err.Error(),
			})
			continue
		}
		if len(suggestions) == 0 || !s.scorer.AutoMappable(suggestions[0].MatchScore) {
			res.SkippedOrders++
			continue
		}

		top := suggestions[0]
		now := time.Now().UTC()
		m := &models.OrderMapping{
			ID:                 uuid.New(),
			FulfillmentOrderID: o.ID,
			StorefrontOrderID:  &top.StorefrontOrderID,
			Classification:     models.ClassificationNormal,
			MappedAt:           now,
			Notes:              fmt.Sprintf("Auto-mapped with %.0f%% confidence", top.MatchScore*100),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.repo.CreateMapping(ctx, m); err != nil {
			res.FailedMappings++
			res.Details = append(res.Details, AutoMapDetail{
				FulfillmentOrderID: o.ID,
				ExternalID:         o.ExternalID,
				StorefrontOrderID:  top.StorefrontOrderID,
				MatchScore:         top.MatchScore,
				Status:             "failed",
				Error:              err.Error(),
			})
			slog.Error("auto-map order", "order_id", o.ID, "error", err.Error())
			continue
		}

		res.SuccessfulMappings++
		res.Details = append(res.Details, AutoMapDetail{
			FulfillmentOrderID: o.ID,
			ExternalID:         o.ExternalID,
			StorefrontOrderID:  top.StorefrontOrderID,
			MatchScore:         top.MatchScore,
			Status:             "mapped",
		})
		s.publishMappingChanged(ctx, m, messages.MappingCreated, nil)
	}

	if res.SuccessfulMappings > 0 {
		s.InvalidateStats(ctx)
	}
	return res, nil
}

func (s *Service) publishMappingChanged(ctx context.Context, m *models.OrderMapping, action string, actor *string) {
	if s.producer == nil || s.topic == "" {
		return
	}
	b, err := json.Marshal(messages.MappingChanged{
		MappingID:          m.ID.String(),
		FulfillmentOrderID: m.FulfillmentOrderID,
		Action:             action,
		Actor:              actor,
		ChangedAt:          time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(m.ID.String()), b); err != nil {
		slog.Error("publish mapping event", "mapping_id", m.ID.String(), "error", err.Error())
	}
}

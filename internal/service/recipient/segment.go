package recipient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

// SegmentService manages saved segments. Their counts are a cache over the
// resolver and are never used to decide an audience.
type SegmentService struct {
	store    SegmentStore
	resolver *Resolver
	now      func() time.Time
}

// NewSegmentService creates a segment service.
func NewSegmentService(store SegmentStore, resolver *Resolver) *SegmentService {
	return &SegmentService{store: store, resolver: resolver, now: time.Now}
}

// Create saves a segment and computes its first estimate.
func (s *SegmentService) Create(ctx context.Context, name, description string, filter domain.RecipientFilterSpec) (*domain.RecipientSegment, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("segment name is required")
	}
	if filter.SegmentID != "" {
		return nil, fmt.Errorf("a segment cannot reference another segment")
	}
	now := s.now().UTC()
	seg := &domain.RecipientSegment{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Filter:      filter,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, seg); err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	if n, err := s.Estimate(ctx, seg.ID); err == nil {
		seg.EstimatedCount = n
		seg.LastCalculated = &now
	} else {
		logger.Warn("[Segments] initial estimate failed", "segment_id", seg.ID, "error", err)
	}
	return seg, nil
}

// Get returns a segment.
func (s *SegmentService) Get(ctx context.Context, id string) (*domain.RecipientSegment, error) {
	return s.store.Get(ctx, id)
}

// Estimate runs a count-only resolve and caches the result on the segment.
func (s *SegmentService) Estimate(ctx context.Context, id string) (int, error) {
	seg, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	res, err := s.resolver.Resolve(ctx, seg.Filter, nil, ResolveOptions{CountOnly: true})
	if err != nil {
		return 0, err
	}
	if err := s.store.UpdateEstimate(ctx, id, res.TotalCount, s.now().UTC()); err != nil {
		return 0, fmt.Errorf("store estimate: %w", err)
	}
	return res.TotalCount, nil
}

// RecordUsage bumps the usage statistics after a send.
func (s *SegmentService) RecordUsage(ctx context.Context, id string) error {
	return s.store.RecordUsage(ctx, id, s.now().UTC())
}

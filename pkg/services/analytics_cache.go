package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// OverviewCache stores computed analytics overviews per project.
type OverviewCache interface {
	// Get returns the cached overview, or nil when there is none.
	Get(ctx context.Context, projectID uuid.UUID) (*models.AnalyticsOverview, error)
	Set(ctx context.Context, projectID uuid.UUID, overview *models.AnalyticsOverview) error
	// Invalidate drops the cached overview after employee data changed.
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

type redisOverviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOverviewCache returns a Redis backed cache, or a no-op cache when client is nil.
func NewOverviewCache(client *redis.Client, ttl time.Duration) OverviewCache {
	if client == nil {
		return noopOverviewCache{}
	}
	return &redisOverviewCache{client: client, ttl: ttl}
}

func overviewKey(projectID uuid.UUID) string {
	return "orgpulse:analytics:overview:" + projectID.String()
}

func (c *redisOverviewCache) Get(ctx context.Context, projectID uuid.UUID) (*models.AnalyticsOverview, error) {
	data, err := c.client.Get(ctx, overviewKey(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached overview: %w", err)
	}
	var overview models.AnalyticsOverview
	if err := json.Unmarshal(data, &overview); err != nil {
		return nil, fmt.Errorf("failed to decode cached overview: %w", err)
	}
	return &overview, nil
}

func (c *redisOverviewCache) Set(ctx context.Context, projectID uuid.UUID, overview *models.AnalyticsOverview) error {
	data, err := json.Marshal(overview)
	if err != nil {
		return fmt.Errorf("failed to encode overview: %w", err)
	}
	return c.client.Set(ctx, overviewKey(projectID), data, c.ttl).Err()
}

func (c *redisOverviewCache) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	return c.client.Del(ctx, overviewKey(projectID)).Err()
}

type noopOverviewCache struct{}

func (noopOverviewCache) Get(context.Context, uuid.UUID) (*models.AnalyticsOverview, error) {
	return nil, nil
}

func (noopOverviewCache) Set(context.Context, uuid.UUID, *models.AnalyticsOverview) error {
	return nil
}

func (noopOverviewCache) Invalidate(context.Context, uuid.UUID) error { return nil }

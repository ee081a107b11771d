package cache

import (
	"context"

	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DatasetStore keeps one JSON snapshot of the classifier data per project.
type DatasetStore struct {
	cache *CacheService
}

func NewDatasetStore(cache *CacheService) *DatasetStore {
	return &DatasetStore{cache: cache}
}

func datasetKey(projectID string) string {
	return keyPrefix + "dataset:" + projectID
}

func (s *DatasetStore) Save(ctx context.Context, projectID string, data domain.ModelData) error {
	if projectID == "" {
		return errors.NewValidationError("project id is required", "project_id", projectID)
	}
	if data.LabelCount() == 0 {
		return s.Delete(ctx, projectID)
	}

	key := datasetKey(projectID)
	err := s.cache.Tx(ctx, "save", key, func(p redis.Pipeliner) error {
		if err := setJSON(ctx, p, key, data, constants.CacheTTL.DatasetSnapshot); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.logger.Info("Dataset snapshot saved",
		zap.String("project_id", projectID),
		zap.Int("labels", data.LabelCount()),
	)
	return nil
}

// Load returns nil without error when no snapshot exists.
func (s *DatasetStore) Load(ctx context.Context, projectID string) (*domain.ModelData, error) {
	var data domain.ModelData
	found, err := s.cache.Get(ctx, datasetKey(projectID), &data)
	if err != nil || !found {
		return nil, err
	}
	if data.TextData == nil {
		data.TextData = map[string][]string{}
	}
	if data.ClassifierData == nil {
		data.ClassifierData = map[string][]string{}
	}
	return &data, nil
}

func (s *DatasetStore) Delete(ctx context.Context, projectID string) error {
	key := datasetKey(projectID)
	return s.cache.Tx(ctx, "delete", key, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		return nil
	})
}

package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

// TranslationCache stores translate-service results in Redis so repeated
// phrases survive restarts and are shared between extension instances.
type TranslationCache struct {
	cache *CacheService
	ttl   time.Duration
}

func NewTranslationCache(cache *CacheService) *TranslationCache {
	return &TranslationCache{cache: cache, ttl: constants.CacheTTL.Translation}
}

func translationKey(text, language string) string {
	sum := sha1.Sum([]byte(text))
	return keyPrefix + "translate:" + util.Normalize(language) + ":" + hex.EncodeToString(sum[:])
}

func (t *TranslationCache) GetTranslation(ctx context.Context, text, language string) (string, bool, error) {
	var translated string
	found, err := t.cache.Get(ctx, translationKey(text, language), &translated)
	if err != nil || !found {
		return "", false, err
	}
	return translated, true, nil
}

func (t *TranslationCache) SetTranslation(ctx context.Context, text, language, translated string) error {
	if translated == "" {
		return nil
	}
	if err := t.cache.Set(ctx, translationKey(text, language), translated, t.ttl); err != nil {
		return err
	}
	t.cache.logger.Debug("Translation cached", zap.String("language", language))
	return nil
}

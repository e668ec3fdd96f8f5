package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"tokenguard/internal/repository"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CacheService stores analysis results keyed by question.
type CacheService struct {
	repo *repository.CacheRepository
	now  func() time.Time
}

func NewCacheService(repo *repository.CacheRepository) *CacheService {
	return &CacheService{repo: repo, now: time.Now}
}

// CacheKey hashes the parts that make two questions equivalent.
func CacheKey(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Get returns the live value for key; ok is false on a miss or expired row.
func (s *CacheService) Get(key string) (string, bool, error) {
	e, err := s.repo.Get(key, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *CacheService) Put(key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.repo.Put(key, value, s.now().Add(ttl))
}

// ClearAll deletes every row and reports how many were removed.
func (s *CacheService) ClearAll() (int64, error) {
	n, err := s.repo.DeleteAll()
	if err != nil {
		return 0, err
	}
	log.WithField("deleted", n).Info("[cache] cleared")
	return n, nil
}

func (s *CacheService) PurgeExpired() (int64, error) {
	return s.repo.DeleteExpired(s.now())
}

func (s *CacheService) Count() (int64, error) {
	return s.repo.Count()
}

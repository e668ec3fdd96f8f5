// Package jobs runs periodic maintenance.
package jobs

import (
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type PromotionExpirer interface {
	ExpireEnded() (int64, error)
}

type CachePurger interface {
	PurgeExpired() (int64, error)
}

const (
	ExpirePromotionsSpec = "@hourly"
	PurgeCacheSpec       = "*/15 * * * *"
)

type Scheduler struct {
	cron       *cron.Cron
	promotions PromotionExpirer
	cache      CachePurger
}

func NewScheduler(promotions PromotionExpirer, cache CachePurger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		promotions: promotions,
		cache:      cache,
	}
}

// Start registers all jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(ExpirePromotionsSpec, s.ExpirePromotions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(PurgeCacheSpec, s.PurgeCache); err != nil {
		return err
	}
	s.cron.Start()
	log.Info("[CRON] scheduler started")
	return nil
}

// ExpirePromotions marks active promotions past their end date as expired.
func (s *Scheduler) ExpirePromotions() {
	n, err := s.promotions.ExpireEnded()
	if err != nil {
		log.WithError(err).Error("[CRON] expire promotions")
		return
	}
	if n > 0 {
		log.WithField("count", n).Info("[CRON] promotions expired")
	}
}

func (s *Scheduler) PurgeCache() {
	n, err := s.cache.PurgeExpired()
	if err != nil {
		log.WithError(err).Error("[CRON] purge cache")
		return
	}
	log.WithField("count", n).Debug("[CRON] expired cache rows purged")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("[CRON] scheduler stopped")
}

package jobs

import (
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
)

type counter struct {
	calls int
	n     int64
	err   error
}

func (c *counter) ExpireEnded() (int64, error)  { c.calls++; return c.n, c.err }
func (c *counter) PurgeExpired() (int64, error) { c.calls++; return c.n, c.err }

func TestJobsCallServices(t *testing.T) {
	promos := &counter{n: 2}
	cache := &counter{err: errors.New("db down")}
	s := NewScheduler(promos, cache)
	s.ExpirePromotions()
	s.PurgeCache()
	if promos.calls != 1 || cache.calls != 1 {
		t.Errorf("calls = %d, %d", promos.calls, cache.calls)
	}
}

func TestSpecsParse(t *testing.T) {
	for _, spec := range []string{ExpirePromotionsSpec, PurgeCacheSpec} {
		if _, err := cron.ParseStandard(spec); err != nil {
			t.Errorf("%q: %v", spec, err)
		}
	}
	s := NewScheduler(&counter{}, &counter{})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Errorf("entries = %d", n)
	}
	s.Stop()
}

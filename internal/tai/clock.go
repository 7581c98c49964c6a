// SPDX-License-Identifier: AGPL-3.0-or-later
// dabmux - A software DAB ensemble multiplexer
// Copyright (C) 2026 The dabmux Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package tai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/digitalradio/dabmux/internal/config"
	"github.com/digitalradio/dabmux/internal/metrics"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"
)

// redisCacheKey is the key the optional shared cache stores the
// serialized bulletin under (DOMAIN STACK, SPEC_FULL.md).
const redisCacheKey = "dabmux:tai:bulletin"

// NowFunc abstracts wall-clock reads for testability.
type NowFunc func() time.Time

// Clock serves the current TAI-UTC offset, refreshing it from the
// fallback hierarchy described in §4.3: in-memory -> on-disk cache
// (advisory-locked) -> configured URLs, in order, until one yields a
// Usable bulletin.
type Clock struct {
	mu    sync.Mutex
	state BulletinState
	override bool

	cfg     config.TAIConfig
	now     NowFunc
	http    *http.Client
	redis   *redis.Client
	metrics *metrics.Metrics

	scheduler gocron.Scheduler
	job       gocron.Job

	firstLoad sync.Once
	loadErr   error
}

// New constructs a Clock from the configured cache path, URLs and
// timeouts. It does not block; the first call to Offset() performs the
// blocking fallback-chain resolution described in §4.3.
func New(cfg config.TAIConfig, m *metrics.Metrics) *Clock {
	c := &Clock{
		cfg:     cfg,
		now:     time.Now,
		http:    &http.Client{Timeout: cfg.FetchTimeout},
		metrics: m,
	}
	if cfg.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	return c
}

// nowUnix returns the injectable clock's current Unix time.
func (c *Clock) nowUnix() int64 { return c.now().Unix() }

// Offset returns the current TAI-UTC offset in seconds. The first call
// blocks until a usable (or, failing that, expired-but-valid) bulletin
// is found across the fallback hierarchy; subsequent calls return the
// cached value immediately (§4.3 "Refresh cycle").
func (c *Clock) Offset(ctx context.Context) (int, error) {
	c.firstLoad.Do(func() {
		c.loadErr = c.resolve(ctx)
	})
	if c.loadErr != nil {
		return 0, c.loadErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status == StatusEmpty {
		return 0, errors.New("tai: clock not set: no source yielded a usable or expired bulletin")
	}
	// An expired-but-valid bulletin is still served here; Status()
	// exposes expires_in so the caller can surface the warning.
	return c.state.Offset, nil
}

// Status returns the current bulletin state as observed now, for
// remote-control reporting (§6: expiry, expires_at) and metrics.
func (c *Clock) Status() BulletinState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetOverride installs a manual TAI-UTC offset with a synthetic
// bulletin expiring ten years from now (§4.3 "Manual override").
func (c *Clock) SetOverride(offsetSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = BulletinState{
		Status:    StatusUsable,
		Offset:    offsetSeconds,
		ExpiresAt: c.nowUnix() + 10*365*24*3600,
	}
	c.override = true
}

// SetURLs reconfigures the bulletin source URLs, clearing any manual
// override (§4.3: "overridden state is cleared if the URL list
// changes").
func (c *Clock) SetURLs(urls []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.URLs = urls
	c.override = false
	c.state = BulletinState{}
	c.firstLoad = sync.Once{}
}

// resolve walks the fallback hierarchy until a Usable bulletin is
// found, falling back to the best valid-but-expired bulletin seen
// (§4.3 "Failure semantics").
func (c *Clock) resolve(ctx context.Context) error {
	c.mu.Lock()
	if c.override {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	var bestExpired *BulletinState

	tryCandidate := func(s BulletinState, err error) bool {
		if err != nil {
			return false
		}
		if s.Usable(c.nowUnix()) {
			c.mu.Lock()
			c.state = s
			c.mu.Unlock()
			return true
		}
		if bestExpired == nil || s.ExpiresAt > bestExpired.ExpiresAt {
			bestExpired = &s
		}
		return false
	}

	if s, ok := c.readMemory(); ok {
		if tryCandidate(s, nil) {
			return nil
		}
	}
	if s, err := c.readDiskCache(); err == nil {
		if tryCandidate(s, nil) {
			return nil
		}
	}
	if c.redis != nil {
		if s, err := c.readRedisCache(ctx); err == nil {
			if tryCandidate(s, nil) {
				return nil
			}
		}
	}
	for _, url := range c.cfg.URLs {
		s, err := c.fetchURL(ctx, url)
		if tryCandidate(s, err) {
			_ = c.writeDiskCache(s)
			if c.redis != nil {
				_ = c.writeRedisCache(ctx, s)
			}
			return nil
		}
	}

	if bestExpired != nil {
		c.mu.Lock()
		c.state = *bestExpired
		c.mu.Unlock()
		return nil
	}
	return errors.New("tai: clock not set: no source yielded a usable or expired bulletin")
}

// readMemory reports the in-memory state if it is non-empty.
func (c *Clock) readMemory() (BulletinState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status == StatusEmpty {
		return BulletinState{}, false
	}
	return c.state, true
}

// readDiskCache parses the on-disk cache file under an advisory shared
// lock (§4.3, §8 "cache-file lock").
func (c *Clock) readDiskCache() (BulletinState, error) {
	if c.cfg.CachePath == "" {
		return BulletinState{}, errors.New("tai: no cache path configured")
	}
	lock := flock.New(c.cfg.CachePath + ".lock")
	locked, err := lock.TryRLock()
	if err != nil || !locked {
		return BulletinState{}, fmt.Errorf("tai: acquiring disk cache read lock: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Open(c.cfg.CachePath)
	if err != nil {
		return BulletinState{}, err
	}
	defer f.Close()
	return ParseBulletin(f, c.nowUnix())
}

// writeDiskCache atomically rewrites the on-disk cache under the same
// advisory lock (§4.3 "the cache file is atomically rewritten under the
// same lock").
func (c *Clock) writeDiskCache(s BulletinState) error {
	if c.cfg.CachePath == "" {
		return nil
	}
	lock := flock.New(c.cfg.CachePath + ".lock")
	locked, err := lock.TryLock()
	if err != nil || !locked {
		return fmt.Errorf("tai: acquiring disk cache write lock: %w", err)
	}
	defer lock.Unlock()

	tmp := c.cfg.CachePath + ".tmp"
	body := fmt.Sprintf("#@ %d\n%d %d  # dabmux cached bulletin\n",
		s.ExpiresAt+ntpUnixEpochOffset, c.nowUnix()+ntpUnixEpochOffset, s.Offset)
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.cfg.CachePath)
}

func (c *Clock) readRedisCache(ctx context.Context) (BulletinState, error) {
	raw, err := c.redis.Get(ctx, redisCacheKey).Result()
	if err != nil {
		return BulletinState{}, err
	}
	return ParseBulletin(strings.NewReader(raw), c.nowUnix())
}

func (c *Clock) writeRedisCache(ctx context.Context, s BulletinState) error {
	body := fmt.Sprintf("#@ %d\n%d %d  # dabmux cached bulletin\n",
		s.ExpiresAt+ntpUnixEpochOffset, c.nowUnix()+ntpUnixEpochOffset, s.Offset)
	return c.redis.Set(ctx, redisCacheKey, body, 0).Err()
}

func (c *Clock) fetchURL(ctx context.Context, url string) (BulletinState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return BulletinState{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return BulletinState{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return BulletinState{}, fmt.Errorf("tai: fetching %s: unexpected status %s", url, resp.Status)
	}
	return ParseBulletin(resp.Body, c.nowUnix())
}

// StartBackgroundRefresh schedules the hourly refresh task via gocron
// (§4.3 "Refresh cycle", AMBIENT STACK). A failed refresh is not retried
// immediately: the next attempt runs one refresh interval later.
// cfg.RefreshRetryBackoff is not used.
func (c *Clock) StartBackgroundRefresh(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("tai: creating scheduler: %w", err)
	}
	interval := c.cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			// A failed refresh leaves the existing state in place; the
			// job's fixed interval already provides the one-cycle
			// deferral described in §4.3.
			_ = c.resolve(ctx)
			if c.metrics != nil {
				st := c.Status()
				c.metrics.TAIOffsetSeconds.Set(float64(st.Offset))
				c.metrics.TAIBulletinExpiresIn.Set(float64(st.ExpiresIn(c.nowUnix())))
				if st.Usable(c.nowUnix()) {
					c.metrics.TAIBulletinUsable.Set(1)
				} else {
					c.metrics.TAIBulletinUsable.Set(0)
				}
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("tai: scheduling refresh job: %w", err)
	}
	c.scheduler = s
	c.job = job
	s.Start()
	return nil
}

// StopBackgroundRefresh shuts the scheduler down, draining in-flight
// refreshes within the caller's context budget.
func (c *Clock) StopBackgroundRefresh() error {
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Shutdown()
}

// Package clock supplies the time source for deadline checks. Synced follows the
// booking host's clock by reading the Date header of HEAD responses.
package clock

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"thsrbook/internal/logger"
)

type Clock interface {
	Now() time.Time
}

// System is the local wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

const resyncAfter = time.Hour

// Synced is a clock offset against one or more HTTP servers.
type Synced struct {
	servers []string
	client  *http.Client

	mu           sync.RWMutex
	offset       time.Duration
	lastSyncTime time.Time
	synced       bool
}

// NewSynced creates a clock that follows servers once Sync succeeds.
func NewSynced(servers ...string) *Synced {
	return &Synced{
		servers: servers,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Sync averages the offset of every server that answered with a usable Date header.
func (s *Synced) Sync(ctx context.Context) error {
	var total time.Duration
	ok := 0

	for _, server := range s.servers {
		offset, err := s.offsetFrom(ctx, server)
		if err != nil {
			logger.Debug("time sync failed for %s: %v", server, err)
			continue
		}
		logger.Debug("time offset from %s: %v", server, offset)
		total += offset
		ok++
	}

	if ok == 0 {
		return fmt.Errorf("failed to sync time with any of %d servers", len(s.servers))
	}

	s.mu.Lock()
	s.offset = total / time.Duration(ok)
	s.lastSyncTime = time.Now()
	s.synced = true
	s.mu.Unlock()

	logger.Info("clock synchronized (offset %v)", s.Offset())
	return nil
}

func (s *Synced) offsetFrom(ctx context.Context, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	before := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	after := time.Now()

	header := resp.Header.Get("Date")
	if header == "" {
		return 0, fmt.Errorf("no Date header in response")
	}
	serverTime, err := http.ParseTime(header)
	if err != nil {
		return 0, fmt.Errorf("failed to parse Date header: %w", err)
	}

	// Date has one-second resolution; half the round trip approximates when it was stamped.
	local := before.Add(after.Sub(before) / 2)
	return serverTime.Sub(local), nil
}

// Now is local time shifted by the last offset, or plain local time before a sync.
func (s *Synced) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.synced {
		return time.Now()
	}
	return time.Now().Add(s.offset)
}

func (s *Synced) IsSynced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

func (s *Synced) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// ShouldResync is true before the first sync and an hour after the last one.
func (s *Synced) ShouldResync() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.synced || time.Since(s.lastSyncTime) > resyncAfter
}

// Resync syncs again when ShouldResync says so; failures keep the old offset.
func (s *Synced) Resync(ctx context.Context) {
	if !s.ShouldResync() {
		return
	}
	if err := s.Sync(ctx); err != nil {
		logger.Warn("clock resync: %v", err)
	}
}

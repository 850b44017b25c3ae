package deploy

import (
	"codegen-app/internal/logger"
	"codegen-app/internal/metrics"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// KeyLister lists every deploy key recorded for an application
type KeyLister interface {
	ListDeployKeys(ctx context.Context) ([]string, error)
}

// Sweeper removes staging leftovers and retired snapshots from the deploy root
type Sweeper struct {
	keys  KeyLister
	root  string
	grace time.Duration
	now   func() time.Time
}

// NewSweeper creates a sweeper that only touches entries older than grace
func NewSweeper(keys KeyLister, deployRoot string, grace time.Duration) *Sweeper {
	return &Sweeper{keys: keys, root: deployRoot, grace: grace, now: time.Now}
}

// Sweep removes every entry of the deploy root older than the grace period that
// is either a retired snapshot or not recorded as any application's key.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("error reading deploy root: %w", err)
	}

	recorded, err := s.keys.ListDeployKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("error listing deploy keys: %w", err)
	}
	live := make(map[string]struct{}, len(recorded))
	for _, k := range recorded {
		live[k] = struct{}{}
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		_, isLive := live[name]
		if isLive && !strings.HasPrefix(name, retiredPrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
			logger.Log.WithError(err).WithField("entry", name).Warn("Failed to sweep deploy root entry")
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.SnapshotsSwept(removed)
		logger.Log.WithFields(logrus.Fields{"root": s.root, "removed": removed}).Info("Swept deploy root")
	}
	return removed, nil
}

// Schedule runs Sweep on a cron spec until ctx is done. An empty spec schedules nothing.
func (s *Sweeper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		logger.Log.Info("Deploy root sweeper disabled")
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			logger.Log.WithError(err).Error("Deploy root sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	logger.Log.WithField("schedule", spec).Info("Deploy root sweeper scheduled")
	return c, nil
}

// Package deploy publishes materialized projects behind short public keys.
package deploy

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/auth"
	"codegen-app/internal/builder"
	"codegen-app/internal/codegen"
	"codegen-app/internal/logger"
	"codegen-app/internal/metrics"
	"codegen-app/internal/repository/db"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// retiredPrefix names snapshots moved aside during a redeploy. The leading dot
// keeps them out of the key namespace.
const retiredPrefix = ".retired-"

// maxKeyAttempts bounds collision retries. Exhausting it needs a nearly full key space.
const maxKeyAttempts = 1000

// SourceLocator resolves where a generation type's files for an application live
type SourceLocator interface {
	Dir(t codegen.Type, appID string) string
}

// Store is the subset of db.Database the manager needs
type Store interface {
	GetApplication(ctx context.Context, id string) (*db.Application, error)
	DeployKeyExists(ctx context.Context, deployKey string) (bool, error)
	UpdateDeployment(ctx context.Context, appID, deployKey string, deployedAt time.Time) error
}

// Option configures a Manager
type Option func(*Manager)

// WithKeySource replaces the random key source
func WithKeySource(src KeySource) Option {
	return func(m *Manager) { m.keys = src }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager builds and atomically publishes application snapshots
type Manager struct {
	store      Store
	sources    SourceLocator
	builder    builder.Builder
	root       string
	publicHost string

	keys   KeySource
	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// NewManager creates a Manager publishing into deployRoot
func NewManager(store Store, sources SourceLocator, b builder.Builder, deployRoot, publicHost string, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		sources:    sources,
		builder:    b,
		root:       deployRoot,
		publicHost: strings.TrimRight(publicHost, "/"),
		keys:       RandomKey,
		now:        time.Now,
		rename:     os.Rename,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the deploy root directory
func (m *Manager) Root() string {
	return m.root
}

// Deploy builds the application if its type needs it, publishes the result under
// its deploy key and returns the public URL.
func (m *Manager) Deploy(ctx context.Context, appID string, caller auth.Identity) (string, error) {
	if appID == "" {
		return "", fmt.Errorf("%w: application id is required", apperr.ErrValidation)
	}

	app, err := m.store.GetApplication(ctx, appID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: failed to load application: %w", apperr.ErrStorage, err)
	}
	if !caller.Owns(app) {
		return "", fmt.Errorf("%w: user %s may not deploy application %s", apperr.ErrAuthorization, caller.UserID, appID)
	}
	genType, err := codegen.ParseType(app.GenerationType)
	if err != nil {
		return "", err
	}

	log := logger.Log.WithFields(logrus.Fields{"app_id": appID, "generation_type": genType.String()})

	url, err := m.deploy(ctx, app, genType, log)
	if err != nil {
		metrics.DeployOutcome(genType.String(), metrics.DeployFailed)
		log.WithError(err).Error("Deploy failed")
		return "", err
	}
	return url, nil
}

func (m *Manager) deploy(ctx context.Context, app *db.Application, genType codegen.Type, log *logrus.Entry) (string, error) {
	sourceDir := m.sources.Dir(genType, app.ID)
	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: code for application %s has not been generated yet", apperr.ErrNotFound, app.ID)
	}

	publishDir, err := m.buildIfNeeded(ctx, genType, sourceDir, log)
	if err != nil {
		return "", err
	}

	// Reuse the stored key; a fresh one must also be free on disk
	deployKey := ""
	owned := app.DeployKey != nil && *app.DeployKey != ""
	if owned {
		deployKey = *app.DeployKey
	} else {
		deployKey, err = m.allocateKey(ctx, "", true)
		if err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create deploy root: %w", apperr.ErrStorage, err)
	}

	stagingKey, stagingDir, err := m.createStaging(ctx, deployKey)
	if err != nil {
		return "", err
	}

	if err := copyDir(publishDir, stagingDir); err != nil {
		if rmErr := os.RemoveAll(stagingDir); rmErr != nil {
			log.WithError(rmErr).WithField("staging_dir", stagingDir).Warn("Failed to remove staging directory")
		}
		return "", fmt.Errorf("%w: failed to copy snapshot: %w", apperr.ErrStorage, err)
	}

	effectiveKey := m.publish(deployKey, stagingKey, owned, log)

	deployedAt := m.now()
	if err := m.store.UpdateDeployment(ctx, app.ID, effectiveKey, deployedAt); err != nil {
		if errors.Is(err, apperr.ErrStorage) {
			return "", err
		}
		return "", fmt.Errorf("%w: failed to record deployment: %w", apperr.ErrStorage, err)
	}

	outcome := metrics.DeployPublished
	if effectiveKey != deployKey {
		outcome = metrics.DeployFallback
	}
	metrics.DeployOutcome(genType.String(), outcome)

	url := m.publicHost + "/" + effectiveKey
	log.WithFields(logrus.Fields{"deploy_key": effectiveKey, "url": url}).Info("Application deployed")
	return url, nil
}

// buildIfNeeded returns the directory whose contents get published
func (m *Manager) buildIfNeeded(ctx context.Context, genType codegen.Type, sourceDir string, log *logrus.Entry) (string, error) {
	if !genType.RequiresBuild() {
		return sourceDir, nil
	}
	if m.builder == nil {
		return "", fmt.Errorf("%w: no builder configured for %s projects", apperr.ErrBuild, genType)
	}

	start := time.Now()
	err := m.builder.Build(ctx, sourceDir)
	metrics.ObserveBuild(time.Since(start), err)
	if err != nil {
		if errors.Is(err, apperr.ErrBuild) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", apperr.ErrBuild, err)
	}

	outputDir := filepath.Join(sourceDir, m.builder.OutputDir())
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: build produced no %s directory", apperr.ErrBuild, m.builder.OutputDir())
	}

	log.WithField("duration", time.Since(start).String()).Info("Project built")
	return outputDir, nil
}

// allocateKey draws keys until one is not recorded in the store, differs from
// exclude and, when checkDisk is set, has no directory under the deploy root.
func (m *Manager) allocateKey(ctx context.Context, exclude string, checkDisk bool) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := m.keys()
		if err != nil {
			return "", fmt.Errorf("%w: %w", apperr.ErrStorage, err)
		}
		if key == exclude {
			continue
		}

		exists, err := m.store.DeployKeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("%w: failed to check deploy key: %w", apperr.ErrStorage, err)
		}
		if exists {
			continue
		}

		if checkDisk {
			if _, err := os.Lstat(filepath.Join(m.root, key)); err == nil {
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: failed to check deploy directory: %w", apperr.ErrStorage, err)
			}
		}

		return key, nil
	}
	return "", fmt.Errorf("%w: no free deploy key after %d attempts", apperr.ErrStorage, maxKeyAttempts)
}

// createStaging exclusively creates a directory named by a fresh candidate key.
// An existing directory counts as a collision.
func (m *Manager) createStaging(ctx context.Context, deployKey string) (string, string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := m.allocateKey(ctx, deployKey, false)
		if err != nil {
			return "", "", err
		}

		dir := filepath.Join(m.root, key)
		err = os.Mkdir(dir, 0o755)
		if err == nil {
			return key, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("%w: failed to create staging directory: %w", apperr.ErrStorage, err)
		}
	}
	return "", "", fmt.Errorf("%w: no free staging directory after %d attempts", apperr.ErrStorage, maxKeyAttempts)
}

// publish renames the staging directory onto the deploy key and returns the
// effective key. When the rename fails the staging key is kept instead.
func (m *Manager) publish(deployKey, stagingKey string, owned bool, log *logrus.Entry) string {
	finalDir := filepath.Join(m.root, deployKey)
	stagingDir := filepath.Join(m.root, stagingKey)

	// Only an application's own previous snapshot is ever moved aside
	retiredDir := ""
	if owned {
		if _, err := os.Lstat(finalDir); err == nil {
			candidate := filepath.Join(m.root, retiredPrefix+deployKey+"-"+strconv.FormatInt(m.now().UnixNano(), 36))
			if err := m.rename(finalDir, candidate); err != nil {
				log.WithError(err).Warn("Failed to move previous snapshot aside")
			} else {
				retiredDir = candidate
			}
		}
	}

	if err := m.rename(stagingDir, finalDir); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"deploy_key":  deployKey,
			"staging_key": stagingKey,
		}).Warn("Rename failed, publishing under staging key")
		if retiredDir != "" {
			if err := m.rename(retiredDir, finalDir); err != nil {
				log.WithError(err).Warn("Failed to restore previous snapshot")
			}
		}
		return stagingKey
	}

	if retiredDir != "" {
		if err := os.RemoveAll(retiredDir); err != nil {
			log.WithError(err).WithField("retired_dir", retiredDir).Warn("Failed to remove previous snapshot")
		}
	}
	return deployKey
}

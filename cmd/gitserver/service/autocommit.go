package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
	"github.com/theAravinthM/appsmith/common/config"
	"github.com/theAravinthM/appsmith/common/logger"
	rediscommon "github.com/theAravinthM/appsmith/common/redis"
)

const (
	autoCommitProgressTTL = 24 * time.Hour
	autoCommitSlotTTL     = 5 * time.Minute
)

// AutoCommitTracker records run progress and arbitrates run slots across
// instances. ProgressStore is the redis implementation.
type AutoCommitTracker interface {
	Set(ctx context.Context, progress *models.AutoCommitProgress) error
	Get(ctx context.Context, applicationID uuid.UUID, branch string) (*models.AutoCommitProgress, error)
	AcquireSlot(ctx context.Context, applicationID uuid.UUID, branch string) (bool, error)
	ReleaseSlot(ctx context.Context, applicationID uuid.UUID, branch string) error
}

// ProgressStore keeps per (application, branch) auto-commit progress in
// redis so any instance can answer progress queries
type ProgressStore struct {
	redis *rediscommon.Client
}

func NewProgressStore(redis *rediscommon.Client) *ProgressStore {
	return &ProgressStore{redis: redis}
}

func progressKey(applicationID uuid.UUID, branch string) string {
	return "autocommit:progress:" + applicationID.String() + ":" + branch
}

func slotKey(applicationID uuid.UUID, branch string) string {
	return "autocommit:slot:" + applicationID.String() + ":" + branch
}

// Set overwrites the progress record and refreshes its TTL
func (p *ProgressStore) Set(ctx context.Context, progress *models.AutoCommitProgress) error {
	key := progressKey(progress.ApplicationID, progress.Branch)
	fields := map[string]interface{}{
		"status":      string(progress.Status),
		"error":       progress.ErrorMessage,
		"last_run_at": strconv.FormatInt(progress.LastRunAt.Unix(), 10),
	}
	if err := p.redis.SetHashFields(ctx, key, fields); err != nil {
		return err
	}
	return p.redis.Expire(ctx, key, autoCommitProgressTTL)
}

// Get reads the progress record; a pair that never ran reports not_started
func (p *ProgressStore) Get(ctx context.Context, applicationID uuid.UUID, branch string) (*models.AutoCommitProgress, error) {
	fields, err := p.redis.GetAllHash(ctx, progressKey(applicationID, branch))
	if err != nil {
		return nil, err
	}

	progress := &models.AutoCommitProgress{
		ApplicationID: applicationID,
		Branch:        branch,
		Status:        models.AutoCommitNotStarted,
	}
	if len(fields) == 0 {
		return progress, nil
	}

	progress.Status = models.AutoCommitStatus(fields["status"])
	progress.ErrorMessage = fields["error"]
	if raw, ok := fields["last_run_at"]; ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			progress.LastRunAt = time.Unix(unix, 0)
		}
	}
	return progress, nil
}

// AcquireSlot claims the run slot for the pair. At most one run per pair is
// in flight across all instances; the TTL covers crashed runners.
func (p *ProgressStore) AcquireSlot(ctx context.Context, applicationID uuid.UUID, branch string) (bool, error) {
	return p.redis.SetNX(ctx, slotKey(applicationID, branch), "1", autoCommitSlotTTL)
}

// ReleaseSlot frees the run slot
func (p *ProgressStore) ReleaseSlot(ctx context.Context, applicationID uuid.UUID, branch string) error {
	return p.redis.Delete(ctx, slotKey(applicationID, branch))
}

// AutoCommitScheduler periodically commits and pushes the default branch of
// every application that opted in. Runs go through the same lock and commit
// path as user commits; the default branch's protection does not apply to
// system commits.
type AutoCommitScheduler struct {
	service  *GitService
	meta     MetadataStore
	progress AutoCommitTracker
	interval time.Duration
	author   Author
	log      *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewAutoCommitScheduler(cfg config.GitConfig, service *GitService, meta MetadataStore, progress AutoCommitTracker, log *logger.Logger) *AutoCommitScheduler {
	return &AutoCommitScheduler{
		service:  service,
		meta:     meta,
		progress: progress,
		interval: cfg.AutoCommitInterval,
		author: Author{
			Name:  cfg.DefaultAuthorName,
			Email: cfg.DefaultAuthorEmail,
		},
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the ticker loop. Stop shuts it down; in-flight runs finish.
func (s *AutoCommitScheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *AutoCommitScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *AutoCommitScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *AutoCommitScheduler) tick(ctx context.Context) {
	enabled, err := s.meta.ListAutoCommitEnabled(ctx)
	if err != nil {
		s.log.Error("list auto-commit applications", "error", err)
		return
	}

	for _, meta := range enabled {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		s.RunOnce(ctx, meta.ApplicationID, meta.DefaultBranch)
	}
}

// Trigger enqueues an immediate auto-commit run for the application's
// default branch and reports its progress. A run already queued or in
// flight is not duplicated; its current progress record is returned.
func (s *AutoCommitScheduler) Trigger(ctx context.Context, applicationID uuid.UUID) (*models.AutoCommitProgress, error) {
	meta, err := s.meta.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	branch := meta.DefaultBranch

	current, err := s.progress.Get(ctx, applicationID, branch)
	if err != nil {
		return nil, err
	}
	if current.Status == models.AutoCommitQueued || current.Status == models.AutoCommitInProgress {
		return current, nil
	}

	s.setProgress(ctx, applicationID, branch, models.AutoCommitQueued, "")
	go s.RunOnce(context.WithoutCancel(ctx), applicationID, branch)

	return s.progress.Get(ctx, applicationID, branch)
}

// RunOnce executes a single auto-commit for the pair. A pair whose slot is
// already claimed is skipped; callers polling progress see the in-flight
// run's record.
func (s *AutoCommitScheduler) RunOnce(ctx context.Context, applicationID uuid.UUID, branch string) {
	acquired, err := s.progress.AcquireSlot(ctx, applicationID, branch)
	if err != nil {
		s.log.Error("acquire auto-commit slot", "artifact_id", applicationID, "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.progress.ReleaseSlot(ctx, applicationID, branch); err != nil {
			s.log.Error("release auto-commit slot", "artifact_id", applicationID, "error", err)
		}
	}()

	s.setProgress(ctx, applicationID, branch, models.AutoCommitInProgress, "")

	err = s.commitAndPush(ctx, applicationID, branch)
	switch {
	case errors.Is(err, ErrNoChanges):
		s.setProgress(ctx, applicationID, branch, models.AutoCommitCompleted, "")

	case apperrors.IsKind(err, apperrors.KindLockContention):
		// A user operation holds the branch; the next tick retries
		s.setProgress(ctx, applicationID, branch, models.AutoCommitQueued, "")

	case err != nil:
		s.log.Error("auto-commit failed", "artifact_id", applicationID, "branch", branch, "error", err)
		s.setProgress(ctx, applicationID, branch, models.AutoCommitFailed, err.Error())

	default:
		s.log.Info("auto-commit completed", "artifact_id", applicationID, "branch", branch)
		s.setProgress(ctx, applicationID, branch, models.AutoCommitCompleted, "")
	}
}

// commitAndPush is the system variant of the user commit flow. It bypasses
// the protection guard: auto-commit is explicitly allowed on the protected
// default branch.
func (s *AutoCommitScheduler) commitAndPush(ctx context.Context, applicationID uuid.UUID, branch string) error {
	meta, cred, err := s.service.loadConnected(ctx, applicationID)
	if err != nil {
		return err
	}

	release, err := s.service.locks.TryLock(applicationID, branch)
	if err != nil {
		return err
	}
	defer release()

	h, err := s.service.repos.Handle(applicationID, branch)
	if err != nil {
		return err
	}

	if err := s.service.syncToWorktree(ctx, h); err != nil {
		return err
	}

	hash, err := s.service.repos.Commit(h, "System generated commit: auto-commit", s.author, false)
	if err != nil {
		return err
	}

	if err := s.service.repos.Push(ctx, h, cred, meta.RemoteURL); err != nil {
		return err
	}
	if err := s.service.meta.SetBranchTip(ctx, applicationID, branch, hash); err != nil {
		return err
	}
	s.service.invalidateStatus(applicationID, branch)
	return nil
}

func (s *AutoCommitScheduler) setProgress(ctx context.Context, applicationID uuid.UUID, branch string, status models.AutoCommitStatus, errMsg string) {
	err := s.progress.Set(ctx, &models.AutoCommitProgress{
		ApplicationID: applicationID,
		Branch:        branch,
		Status:        status,
		ErrorMessage:  errMsg,
		LastRunAt:     time.Now(),
	})
	if err != nil {
		s.log.Error("record auto-commit progress", "artifact_id", applicationID, "error", err)
	}
}

// ToggleAutoCommit flips the application's auto-commit flag. An in-flight
// run is never canceled; it finishes and no new run starts.
func (s *GitService) ToggleAutoCommit(ctx context.Context, applicationID uuid.UUID) (bool, error) {
	enabled, err := s.meta.ToggleAutoCommit(ctx, applicationID)
	if err != nil {
		return false, err
	}
	s.log.Info("toggled auto-commit", "artifact_id", applicationID, "enabled", enabled)
	return enabled, nil
}

// GetAutoCommitProgress reads the last run's progress without side effects
func (s *GitService) GetAutoCommitProgress(ctx context.Context, progress AutoCommitTracker, applicationID uuid.UUID, branch string) (*models.AutoCommitProgress, error) {
	if _, err := s.meta.GetByApplicationID(ctx, applicationID); err != nil {
		return nil, err
	}
	return progress.Get(ctx, applicationID, branch)
}

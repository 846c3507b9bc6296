package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
)

// In-memory store fakes. They mirror the repository layer's error mapping:
// absent rows surface as the same error kinds Postgres lookups would.

type fakeApplicationStore struct {
	mu   sync.Mutex
	apps map[uuid.UUID]*models.Application
}

func newFakeApplicationStore() *fakeApplicationStore {
	return &fakeApplicationStore{apps: make(map[uuid.UUID]*models.Application)}
}

func (f *fakeApplicationStore) Create(_ context.Context, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.apps[app.ApplicationID]; ok {
		return apperrors.New(apperrors.KindAlreadyExists, "application %s already exists", app.ApplicationID)
	}
	f.apps[app.ApplicationID] = app
	return nil
}

func (f *fakeApplicationStore) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindArtifactNotFound, "application %s not found", id)
	}
	return app, nil
}

func (f *fakeApplicationStore) Update(_ context.Context, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.apps[app.ApplicationID]; !ok {
		return apperrors.New(apperrors.KindArtifactNotFound, "application %s not found", app.ApplicationID)
	}
	f.apps[app.ApplicationID] = app
	return nil
}

type tipKey struct {
	app    uuid.UUID
	branch string
}

type fakeMetadataStore struct {
	mu   sync.Mutex
	meta map[uuid.UUID]*models.GitMetadata
	tips map[tipKey]string
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{
		meta: make(map[uuid.UUID]*models.GitMetadata),
		tips: make(map[tipKey]string),
	}
}

func (f *fakeMetadataStore) Upsert(_ context.Context, m *models.GitMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[m.ApplicationID] = m
	return nil
}

func (f *fakeMetadataStore) GetByApplicationID(_ context.Context, id uuid.UUID) (*models.GitMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindArtifactNotFound, "application %s is not connected to git", id)
	}
	return m, nil
}

func (f *fakeMetadataStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.meta, id)
	for k := range f.tips {
		if k.app == id {
			delete(f.tips, k)
		}
	}
	return nil
}

func (f *fakeMetadataStore) UpdateProtectedBranches(_ context.Context, id uuid.UUID, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[id]
	if !ok {
		return apperrors.New(apperrors.KindArtifactNotFound, "application %s is not connected to git", id)
	}
	m.ProtectedBranches = names
	return nil
}

func (f *fakeMetadataStore) ToggleAutoCommit(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[id]
	if !ok {
		return false, apperrors.New(apperrors.KindArtifactNotFound, "application %s is not connected to git", id)
	}
	m.AutoCommit = !m.AutoCommit
	return m.AutoCommit, nil
}

func (f *fakeMetadataStore) ListAutoCommitEnabled(_ context.Context) ([]*models.GitMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.GitMetadata
	for _, m := range f.meta {
		if m.AutoCommit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMetadataStore) SetBranchTip(_ context.Context, id uuid.UUID, branch, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tips[tipKey{id, branch}] = hash
	return nil
}

func (f *fakeMetadataStore) GetBranchTip(_ context.Context, id uuid.UUID, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tip, ok := f.tips[tipKey{id, branch}]
	if !ok {
		return "", apperrors.New(apperrors.KindBranchNotFound, "no tip recorded for branch %s", branch)
	}
	return tip, nil
}

func (f *fakeMetadataStore) DeleteBranchTip(_ context.Context, id uuid.UUID, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tips, tipKey{id, branch})
	return nil
}

type fakeCredentialStore struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*models.GitCredential
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{creds: make(map[uuid.UUID]*models.GitCredential)}
}

func (f *fakeCredentialStore) Create(_ context.Context, cred *models.GitCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[cred.CredentialID] = cred
	return nil
}

func (f *fakeCredentialStore) GetByID(_ context.Context, id uuid.UUID) (*models.GitCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindAuthFailed, "credential %s not found", id)
	}
	return cred, nil
}

func (f *fakeCredentialStore) BindToApplication(_ context.Context, credID, appID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[credID]
	if !ok {
		return apperrors.New(apperrors.KindAuthFailed, "credential %s not found", credID)
	}
	cred.ApplicationID = &appID
	return nil
}

func (f *fakeCredentialStore) DeleteByApplicationID(_ context.Context, appID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, cred := range f.creds {
		if cred.ApplicationID != nil && *cred.ApplicationID == appID {
			delete(f.creds, id)
		}
	}
	return nil
}

type profileKey struct {
	user string
	app  uuid.UUID
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[profileKey]*models.GitProfile
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: make(map[profileKey]*models.GitProfile)}
}

func (f *fakeProfileStore) Upsert(_ context.Context, p *models.GitProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profileKey{p.UserID, p.ApplicationID}] = p
	return nil
}

func (f *fakeProfileStore) Get(_ context.Context, userID string, appID uuid.UUID) (*models.GitProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[profileKey{userID, appID}], nil
}

type fakeProgressTracker struct {
	mu       sync.Mutex
	progress map[tipKey]*models.AutoCommitProgress
	slots    map[tipKey]bool
}

func newFakeProgressTracker() *fakeProgressTracker {
	return &fakeProgressTracker{
		progress: make(map[tipKey]*models.AutoCommitProgress),
		slots:    make(map[tipKey]bool),
	}
}

func (f *fakeProgressTracker) Set(_ context.Context, p *models.AutoCommitProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[tipKey{p.ApplicationID, p.Branch}] = p
	return nil
}

func (f *fakeProgressTracker) Get(_ context.Context, id uuid.UUID, branch string) (*models.AutoCommitProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.progress[tipKey{id, branch}]; ok {
		return p, nil
	}
	return &models.AutoCommitProgress{
		ApplicationID: id,
		Branch:        branch,
		Status:        models.AutoCommitNotStarted,
	}, nil
}

func (f *fakeProgressTracker) AcquireSlot(_ context.Context, id uuid.UUID, branch string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tipKey{id, branch}
	if f.slots[key] {
		return false, nil
	}
	f.slots[key] = true
	return true, nil
}

func (f *fakeProgressTracker) ReleaseSlot(_ context.Context, id uuid.UUID, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.slots, tipKey{id, branch})
	return nil
}

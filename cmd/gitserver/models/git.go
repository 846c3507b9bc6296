package models

import (
	"time"

	"github.com/google/uuid"
)

// GitMetadata is the durable anchor for one git-connected application.
// Created by connect, cleared by disconnect.
// Maps to: git_metadata table
type GitMetadata struct {
	ApplicationID     uuid.UUID  `db:"application_id" json:"application_id"`
	RemoteURL         string     `db:"remote_url" json:"remote_url"`
	DefaultBranch     string     `db:"default_branch" json:"default_branch"`
	ProtectedBranches []string   `db:"protected_branches" json:"protected_branches"`
	AutoCommit        bool       `db:"auto_commit" json:"auto_commit"`
	CredentialID      *uuid.UUID `db:"credential_id" json:"credential_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GitCredential is a deploy keypair owned by exactly one application
// Maps to: git_credential table
type GitCredential struct {
	CredentialID  uuid.UUID  `db:"credential_id" json:"credential_id"`
	ApplicationID *uuid.UUID `db:"application_id" json:"application_id,omitempty"`
	KeyType       string     `db:"key_type" json:"key_type"`
	PublicKey     string     `db:"public_key" json:"public_key"`
	// PrivateKey never leaves the server; excluded from JSON
	PrivateKey string    `db:"private_key" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// GitProfile is a commit author identity. An application-specific profile
// overrides the user's default; the nil application id row is the default.
// Maps to: git_profile table
type GitProfile struct {
	UserID        string    `db:"user_id" json:"user_id"`
	ApplicationID uuid.UUID `db:"application_id" json:"application_id"`
	AuthorName    string    `db:"author_name" json:"author_name"`
	AuthorEmail   string    `db:"author_email" json:"author_email"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Branch describes one named ref of an application's repository
type Branch struct {
	Name        string `json:"name"`
	IsDefault   bool   `json:"is_default"`
	IsProtected bool   `json:"is_protected"`
	Ahead       int    `json:"ahead"`
	Behind      int    `json:"behind"`
	CommitHash  string `json:"commit_hash"`
}

// CommitRecord is one entry of the commit history. Immutable once created.
type CommitRecord struct {
	Hash        string    `json:"hash"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Parents     []string  `json:"parents"`
}

// GitStatus reports the working copy against its tracked remote ref
type GitStatus struct {
	ModifiedFiles []string `json:"modified_files"`
	Ahead         int      `json:"ahead"`
	Behind        int      `json:"behind"`
	Clean         bool     `json:"clean"`
}

// MergeStatus is a transient merge computation result; never persisted
type MergeStatus struct {
	Mergeable        bool     `json:"mergeable"`
	ConflictingFiles []string `json:"conflicting_files,omitempty"`
	Ahead            int      `json:"ahead"`
	Behind           int      `json:"behind"`
}

// AutoCommitStatus is the auto-commit run state machine
type AutoCommitStatus string

const (
	AutoCommitNotStarted AutoCommitStatus = "not_started"
	AutoCommitQueued     AutoCommitStatus = "queued"
	AutoCommitInProgress AutoCommitStatus = "in_progress"
	AutoCommitCompleted  AutoCommitStatus = "completed"
	AutoCommitFailed     AutoCommitStatus = "failed"
)

// AutoCommitProgress is the per (application, branch) progress record,
// overwritten on each run
type AutoCommitProgress struct {
	ApplicationID uuid.UUID        `json:"application_id"`
	Branch        string           `json:"branch"`
	Status        AutoCommitStatus `json:"status"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	LastRunAt     time.Time        `json:"last_run_at"`
}

// ConnectRequest carries everything connect/import need
type ConnectRequest struct {
	RemoteURL    string    `json:"remote_url"`
	CredentialID uuid.UUID `json:"credential_id"`
}

// CommitRequest carries caller-supplied commit inputs
type CommitRequest struct {
	Message string `json:"message"`
	DoAmend bool   `json:"do_amend"`
}

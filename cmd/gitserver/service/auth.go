package service

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/apperrors"
)

// authFor builds the transport auth for a remote. SSH remotes use the
// artifact's deploy key; local and public HTTPS remotes need none.
func authFor(remoteURL string, cred *models.GitCredential) (transport.AuthMethod, error) {
	if cred == nil || !isSSHURL(remoteURL) {
		return nil, nil
	}

	keys, err := gitssh.NewPublicKeys("git", []byte(cred.PrivateKey), "")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAuthFailed, err, "deploy key for credential %s is unusable", cred.CredentialID)
	}
	// Deploy keys authenticate the repository, not a host identity we can
	// pre-verify; accept the remote's host key the way the original does.
	keys.HostKeyCallback = gossh.InsecureIgnoreHostKey()
	return keys, nil
}

func isSSHURL(remoteURL string) bool {
	if strings.HasPrefix(remoteURL, "ssh://") {
		return true
	}
	// scp-like syntax: git@host:path
	return strings.Contains(remoteURL, "@") && strings.Contains(remoteURL, ":") && !strings.Contains(remoteURL, "://")
}

// classifyGitError maps go-git and network failures onto the stable error
// taxonomy. Unrecognized errors pass through for the caller to wrap.
func classifyGitError(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return apperrors.Wrap(apperrors.KindAuthFailed, err, "%s rejected by remote", operation)

	case errors.Is(err, transport.ErrRepositoryNotFound):
		return apperrors.Wrap(apperrors.KindRemoteUnreachable, err, "remote repository not found during %s", operation)

	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.KindTimeout, err, "%s timed out", operation)

	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return apperrors.Wrap(apperrors.KindMergeConflict, err, "%s requires a merge that cannot fast-forward", operation)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Wrap(apperrors.KindRemoteUnreachable, err, "network failure during %s", operation)
	}
	if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host") {
		return apperrors.Wrap(apperrors.KindRemoteUnreachable, err, "remote unreachable during %s", operation)
	}
	if strings.Contains(err.Error(), "ssh: handshake failed") ||
		strings.Contains(err.Error(), "unable to authenticate") {
		return apperrors.Wrap(apperrors.KindAuthFailed, err, "%s rejected by remote", operation)
	}

	return err
}

// retryable reports whether a classified error is worth a bounded retry.
// Only transient network failures qualify; auth and conflict errors are
// deterministic.
func retryable(err error) bool {
	kind := apperrors.KindOf(err)
	return kind == apperrors.KindRemoteUnreachable || kind == apperrors.KindTimeout
}

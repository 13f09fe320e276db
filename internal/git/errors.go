package git

import (
	"context"
	"errors"
	"net"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// IsRepositoryNotFound reports whether err means the remote repository does not exist
func IsRepositoryNotFound(err error) bool {
	return errors.Is(err, transport.ErrRepositoryNotFound) ||
		errors.Is(err, transport.ErrEmptyRemoteRepository)
}

// IsAuthRequired reports whether err means the remote refused anonymous or supplied credentials
func IsAuthRequired(err error) bool {
	return errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed)
}

// IsTransient reports whether a failed clone or fetch is worth retrying.
// Missing repositories, auth failures, size limits, foreign clones and cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRepositoryNotFound(err) || IsAuthRequired(err) || errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrNotRepository) || errors.Is(err, ErrRemoteMismatch) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Package realtime pushes task events to live project channels.
//
// A Registry tracks which subscribers are watching which project, a
// Dispatcher fans committed events out to them, and a Gate decides once,
// at connection time, whether a subscriber may join a project's room.
package realtime

import "errors"

var (
	// ErrCredentialInvalid means the bearer credential did not verify or
	// does not name an existing user.
	ErrCredentialInvalid = errors.New("invalid credential")
	// ErrNotAuthorized means the user is neither a member nor the owner of the project.
	ErrNotAuthorized = errors.New("not authorized for project")
	// ErrSubscriberUnreachable wraps any failed or timed out send.
	// The subscriber is removed; it is never retried.
	ErrSubscriberUnreachable = errors.New("subscriber unreachable")
	// ErrRegistryCorruption is raised (via panic) when the registry indexes disagree.
	ErrRegistryCorruption = errors.New("registry corruption")
)

package realtime

import (
	"context"
	"errors"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/apperrors"
	"github.com/peroxia-tech/peroxia-engine/pkg/auth"
	"github.com/peroxia-tech/peroxia-engine/pkg/models"
)

// AdmissionState is the state of one admission attempt.
// PENDING moves to exactly one of ADMITTED or REJECTED.
type AdmissionState int

const (
	AdmissionPending AdmissionState = iota
	AdmissionAdmitted
	AdmissionRejected
)

func (s AdmissionState) String() string {
	switch s {
	case AdmissionAdmitted:
		return "admitted"
	case AdmissionRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Reason is the machine-readable rejection code sent as the close reason.
type Reason string

const (
	ReasonInvalidCredential Reason = "invalid_credential"
	ReasonNotAuthorized     Reason = "not_authorized"
	ReasonInternalError     Reason = "internal_error"
)

// AdmissionResult is the terminal outcome of Gate.Admit.
type AdmissionResult struct {
	State    AdmissionState
	Reason   Reason
	UserID   uuid.UUID
	Username string
}

// Admitted reports whether the subscriber may join the room.
func (r AdmissionResult) Admitted() bool {
	return r.State == AdmissionAdmitted
}

// Err maps a rejection to its sentinel error; nil when admitted.
func (r AdmissionResult) Err() error {
	switch {
	case r.Admitted():
		return nil
	case r.Reason == ReasonInvalidCredential:
		return ErrCredentialInvalid
	case r.Reason == ReasonNotAuthorized:
		return ErrNotAuthorized
	default:
		return errors.New(string(r.Reason))
	}
}

// CloseStatus is the WebSocket close code for a rejection: policy violation
// (1008) for credential and authorization failures, internal error otherwise.
func (r AdmissionResult) CloseStatus() websocket.StatusCode {
	if r.Reason == ReasonInternalError {
		return websocket.StatusInternalError
	}
	return websocket.StatusPolicyViolation
}

// CredentialVerifier validates a raw bearer credential.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// UserLookup resolves a verified subject to a user record.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MembershipChecker answers whether a user is a member or the owner of a project.
type MembershipChecker interface {
	IsMemberOrOwner(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

// ScopeProvider supplies a short-lived database scope for the lookups.
// The live channel itself never holds a pooled connection.
type ScopeProvider interface {
	WithScope(ctx context.Context) (context.Context, func(), error)
}

// Gate performs the one-time admission check for a live channel.
type Gate struct {
	verifier   CredentialVerifier
	users      UserLookup
	membership MembershipChecker
	scopes     ScopeProvider
	metrics    *Metrics
	logger     *zap.Logger
}

// NewGate creates a Gate. metrics may be nil.
func NewGate(
	verifier CredentialVerifier,
	users UserLookup,
	membership MembershipChecker,
	scopes ScopeProvider,
	metrics *Metrics,
	logger *zap.Logger,
) *Gate {
	return &Gate{
		verifier:   verifier,
		users:      users,
		membership: membership,
		scopes:     scopes,
		metrics:    metrics,
		logger:     logger.Named("gate"),
	}
}

// Admit verifies credential, resolves the user and checks that the user is a
// member or the owner of projectID. It is evaluated once per connection.
func (g *Gate) Admit(ctx context.Context, credential string, projectID uuid.UUID) AdmissionResult {
	result := g.admit(ctx, credential, projectID)
	if result.Admitted() {
		g.metrics.admission(result.State.String())
	} else {
		g.metrics.admission(string(result.Reason))
	}
	return result
}

func (g *Gate) admit(ctx context.Context, credential string, projectID uuid.UUID) AdmissionResult {
	claims, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		g.logger.Debug("Rejected live channel: credential did not verify",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		return rejected(ReasonInvalidCredential)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return rejected(ReasonInvalidCredential)
	}

	scopedCtx, release, err := g.scopes.WithScope(ctx)
	if err != nil {
		g.logger.Error("Failed to acquire database scope for admission",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		return rejected(ReasonInternalError)
	}
	defer release()

	user, err := g.users.GetByID(scopedCtx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		g.logger.Debug("Rejected live channel: unknown user",
			zap.String("user_id", userID.String()),
			zap.String("project_id", projectID.String()))
		return rejected(ReasonInvalidCredential)
	}
	if err != nil {
		g.logger.Error("Failed to resolve user for admission",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return rejected(ReasonInternalError)
	}

	allowed, err := g.membership.IsMemberOrOwner(scopedCtx, projectID, user.ID)
	if err != nil {
		g.logger.Error("Failed to check project access for admission",
			zap.String("user_id", user.ID.String()),
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		return rejected(ReasonInternalError)
	}
	if !allowed {
		g.logger.Info("Rejected live channel: not a member or owner",
			zap.String("user_id", user.ID.String()),
			zap.String("project_id", projectID.String()))
		return rejected(ReasonNotAuthorized)
	}

	return AdmissionResult{
		State:    AdmissionAdmitted,
		UserID:   user.ID,
		Username: user.Username,
	}
}

func rejected(reason Reason) AdmissionResult {
	return AdmissionResult{State: AdmissionRejected, Reason: reason}
}

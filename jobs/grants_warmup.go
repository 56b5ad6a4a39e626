package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/convoy-fleet/convoy/internal/authz"
)

// RoleLister enumerates the roles worth warming.
type RoleLister interface {
	Roles(ctx context.Context) ([]string, error)
}

// GrantsWarmupJob pre-populates role-scope permission caches so the first
// request after a deploy or cache flush does not pay the store round trip.
type GrantsWarmupJob struct {
	Authz  *authz.Service
	Lister RoleLister
	Logger *slog.Logger
}

// NewGrantsWarmupJob wires dependencies for the warmup handler.
func NewGrantsWarmupJob(authzSvc *authz.Service, lister RoleLister, logger *slog.Logger) *GrantsWarmupJob {
	return &GrantsWarmupJob{Authz: authzSvc, Lister: lister, Logger: logger}
}

// Handle processes authz warmup tasks.
func (j *GrantsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Authz == nil {
		return errors.New("grants warmup: handler not configured")
	}
	var payload AuthzWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	roles := payload.Roles
	if len(roles) == 0 {
		if j.Lister == nil {
			return errors.New("grants warmup: no roles and no lister")
		}
		listed, err := j.Lister.Roles(ctx)
		if err != nil {
			return err
		}
		roles = listed
	}

	var failed int
	for _, role := range roles {
		// Force refresh so the warmed entry reflects the store, not a
		// leftover from before the flush.
		if _, err := j.Authz.RoleGrants(ctx, role, true); err != nil {
			failed++
			j.logger().Warn("warm role grants", slog.String("role", role), slog.Any("error", err))
		}
	}
	j.logger().Info("grants warmup complete", slog.Int("roles", len(roles)), slog.Int("failed", failed))
	if failed == len(roles) && len(roles) > 0 {
		return errors.New("grants warmup: every role failed")
	}
	return nil
}

func (j *GrantsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/convoy-fleet/convoy/internal/authz"
)

type warmupStore struct {
	mu             sync.Mutex
	grants         map[string]map[authz.Key]struct{}
	grantsForCalls map[string]int
	failRoles      map[string]error
	roles          []string
	rolesErr       error
}

func newWarmupStore(roles ...string) *warmupStore {
	s := &warmupStore{
		grants:         make(map[string]map[authz.Key]struct{}),
		grantsForCalls: make(map[string]int),
		failRoles:      make(map[string]error),
		roles:          roles,
	}
	for _, role := range roles {
		s.grants[role] = map[authz.Key]struct{}{authz.NewKey("trips", "view"): {}}
	}
	return s
}

func (s *warmupStore) GrantsFor(ctx context.Context, role string) (map[authz.Key]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grantsForCalls[role]++
	if err := s.failRoles[role]; err != nil {
		return nil, err
	}
	out := make(map[authz.Key]struct{}, len(s.grants[role]))
	for key := range s.grants[role] {
		out[key] = struct{}{}
	}
	return out, nil
}

func (s *warmupStore) SetGrant(ctx context.Context, role string, key authz.Key, granted bool) error {
	return nil
}

func (s *warmupStore) OverridesFor(ctx context.Context, userID uuid.UUID) (map[authz.Key]bool, error) {
	return nil, nil
}

func (s *warmupStore) SetOverride(ctx context.Context, userID uuid.UUID, key authz.Key, granted bool) error {
	return nil
}

func (s *warmupStore) ClearOverride(ctx context.Context, userID uuid.UUID, key authz.Key) error {
	return nil
}

func (s *warmupStore) Roles(ctx context.Context) ([]string, error) {
	if s.rolesErr != nil {
		return nil, s.rolesErr
	}
	return s.roles, nil
}

func (s *warmupStore) calls(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grantsForCalls[role]
}

func newWarmupJob(store *warmupStore) (*GrantsWarmupJob, *authz.Service) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := authz.NewService(authz.DefaultCatalog(), nil, store, store,
		authz.NewCache(time.Minute), nil, nil, logger)
	return NewGrantsWarmupJob(svc, store, logger), svc
}

func warmupTask(t *testing.T, payload AuthzWarmupPayload) *asynq.Task {
	t.Helper()
	task, err := NewAuthzWarmupTask(payload)
	require.NoError(t, err)
	return task
}

func TestGrantsWarmupExplicitRoles(t *testing.T) {
	store := newWarmupStore("staff", "dispatcher", "finance")
	job, svc := newWarmupJob(store)

	err := job.Handle(context.Background(), warmupTask(t, AuthzWarmupPayload{Roles: []string{"staff", "finance"}}))
	require.NoError(t, err)
	require.Equal(t, 1, store.calls("staff"))
	require.Equal(t, 1, store.calls("finance"))
	require.Zero(t, store.calls("dispatcher"))

	// The warmed entry serves subsequent reads without another store hit.
	keys, err := svc.RoleGrants(context.Background(), "staff", false)
	require.NoError(t, err)
	require.Equal(t, []authz.Key{authz.NewKey("trips", "view")}, keys)
	require.Equal(t, 1, store.calls("staff"))
}

func TestGrantsWarmupFallsBackToLister(t *testing.T) {
	store := newWarmupStore("staff", "dispatcher")
	job, _ := newWarmupJob(store)

	err := job.Handle(context.Background(), warmupTask(t, AuthzWarmupPayload{}))
	require.NoError(t, err)
	require.Equal(t, 1, store.calls("staff"))
	require.Equal(t, 1, store.calls("dispatcher"))
}

func TestGrantsWarmupPartialFailureIsTolerated(t *testing.T) {
	store := newWarmupStore("staff", "dispatcher")
	store.failRoles["dispatcher"] = errors.New("timeout")
	job, _ := newWarmupJob(store)

	err := job.Handle(context.Background(), warmupTask(t, AuthzWarmupPayload{}))
	require.NoError(t, err)
}

func TestGrantsWarmupTotalFailure(t *testing.T) {
	store := newWarmupStore("staff")
	store.failRoles["staff"] = errors.New("down")
	job, _ := newWarmupJob(store)

	err := job.Handle(context.Background(), warmupTask(t, AuthzWarmupPayload{}))
	require.Error(t, err)
}

func TestGrantsWarmupMalformedPayloadSkipsRetry(t *testing.T) {
	store := newWarmupStore("staff")
	job, _ := newWarmupJob(store)

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuthzWarmup, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestGrantsWarmupListerError(t *testing.T) {
	store := newWarmupStore("staff")
	store.rolesErr = errors.New("query failed")
	job, _ := newWarmupJob(store)

	err := job.Handle(context.Background(), warmupTask(t, AuthzWarmupPayload{}))
	require.Error(t, err)
}

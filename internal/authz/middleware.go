package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Guard wraps protected operations with a resolution check. A denial is
// never a silent no-op: the caller gets a structured error naming the
// missing capability.
type Guard struct {
	Service *Service
	Logger  *slog.Logger
}

// Check is the direct-call form. A nil principal fails with
// ErrAuthenticationRequired before the engine is consulted.
func (g Guard) Check(ctx context.Context, principal *Principal, module, action string) error {
	if principal == nil {
		return ErrAuthenticationRequired
	}
	ok, err := g.Service.Resolve(ctx, *principal, module, action)
	if err != nil {
		return err
	}
	if !ok {
		return &PermissionDeniedError{Module: module, Action: action}
	}
	return nil
}

// CheckAny passes when at least one pair resolves to granted.
func (g Guard) CheckAny(ctx context.Context, principal *Principal, pairs ...Key) error {
	if principal == nil {
		return ErrAuthenticationRequired
	}
	if len(pairs) == 0 {
		return nil
	}
	var lastErr error
	for _, pair := range pairs {
		ok, err := g.Service.Resolve(ctx, *principal, pair.Module, pair.Action)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return nil
		}
		lastErr = &PermissionDeniedError{Module: pair.Module, Action: pair.Action}
	}
	return lastErr
}

// CheckAll passes only when every pair resolves to granted.
func (g Guard) CheckAll(ctx context.Context, principal *Principal, pairs ...Key) error {
	if principal == nil {
		return ErrAuthenticationRequired
	}
	for _, pair := range pairs {
		ok, err := g.Service.Resolve(ctx, *principal, pair.Module, pair.Action)
		if err != nil {
			return err
		}
		if !ok {
			return &PermissionDeniedError{Module: pair.Module, Action: pair.Action}
		}
	}
	return nil
}

// Require guards an HTTP handler with a single permission.
func (g Guard) Require(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.Check(r.Context(), PrincipalFromContext(r.Context()), module, action)
			if err != nil {
				g.respond(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny guards an HTTP handler, passing on the first granted pair.
func (g Guard) RequireAny(pairs ...Key) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.CheckAny(r.Context(), PrincipalFromContext(r.Context()), pairs...)
			if err != nil {
				g.respond(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll guards an HTTP handler, demanding every pair.
func (g Guard) RequireAll(pairs ...Key) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := g.CheckAll(r.Context(), PrincipalFromContext(r.Context()), pairs...)
			if err != nil {
				g.respond(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g Guard) respond(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrStoreUnavailable) && g.Logger != nil {
		g.Logger.Error("authorization store degraded", slog.Any("error", err))
	}
	RespondError(w, err)
}

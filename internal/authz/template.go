package authz

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// applyConcurrency bounds the template fan-out so a large catalog does not
// monopolize the store's connection pool.
const applyConcurrency = 8

// Template is a named preset of actions applied across every catalog
// module for one role.
type Template struct {
	Name    string
	Actions []string
}

var templates = map[string]Template{
	"viewer":  {Name: "viewer", Actions: []string{"view"}},
	"staff":   {Name: "staff", Actions: []string{"view", "create", "edit"}},
	"manager": {Name: "manager", Actions: []string{"view", "create", "edit", "approve"}},
	"full":    {Name: "full", Actions: []string{"view", "create", "edit", "delete", "approve"}},
}

// Templates lists the registered presets sorted by name.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupTemplate finds a preset by name.
func LookupTemplate(name string) (Template, bool) {
	tpl, ok := templates[name]
	return tpl, ok
}

// ApplyTemplate bulk-sets the role's grants to the named preset: one
// SetGrant per catalog (module, action) pair, granted when the action is
// part of the preset, revoked otherwise. Writes are issued concurrently
// and every write runs to completion even when a sibling has already
// failed; there is no cross-write atomicity. The Report is the accurate
// account of the resulting mixed state — callers needing a consistent
// view after a partial failure reconcile with RoleGrants(role, true).
func (s *Service) ApplyTemplate(ctx context.Context, role, templateName string) (Report, error) {
	tpl, ok := LookupTemplate(templateName)
	if !ok {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateName)
	}
	granted := make(map[string]struct{}, len(tpl.Actions))
	for _, action := range tpl.Actions {
		granted[action] = struct{}{}
	}

	// Legacy-named catalog keys are read-through only; writing them would
	// break the canonical-keys-only invariant of the stores.
	var keys []Key
	for _, key := range s.catalog.Keys() {
		if len(s.aliases.Resolve(key)) > 0 {
			continue
		}
		keys = append(keys, key)
	}
	results := make([]error, len(keys))

	var g errgroup.Group
	g.SetLimit(applyConcurrency)
	for i, key := range keys {
		i, key := i, key
		_, want := granted[key.Action]
		g.Go(func() error {
			results[i] = s.roles.SetGrant(ctx, role, key, want)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{}
	for i, key := range keys {
		if results[i] != nil {
			report.Failed = append(report.Failed, KeyError{Key: key, Err: results[i].Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, key)
	}

	// Some writes may have landed regardless of the failures, so the role
	// scope is stale either way.
	s.invalidate(ctx, RoleScope(role))
	s.recordAudit(ctx, "role_template.apply", "role", role, map[string]any{
		"template":  tpl.Name,
		"succeeded": len(report.Succeeded),
		"failed":    len(report.Failed),
	})
	return report, nil
}

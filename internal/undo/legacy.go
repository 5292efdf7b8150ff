package undo

// ResolveLegacy synthesises a plan for an entry written before plans were
// recorded, from the full snapshot it retained. Entries that already carry a
// plan are returned as is; nil means the entry cannot be undone.
func ResolveLegacy(e *Entry, registry *Registry) *Entry {
	if e == nil {
		return nil
	}
	if e.Rollback != nil {
		return e
	}
	if e.BeforeState == nil {
		return nil
	}
	plan := BuildPlan(e.Resource, e.ResourceID, e.Method, e.BeforeState)
	if plan == nil {
		return nil
	}
	resolved := *e
	resolved.Rollback = plan
	resolved.SideEffects = registry.Build(e.Resource, e.ResourceID, e.BeforeState)
	return &resolved
}

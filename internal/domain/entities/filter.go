package entities

// UpdatePolicy selects which discovered updates a run accepts.
type UpdatePolicy struct {
	// AllowedTypes restricts the accepted update magnitudes. Empty means no restriction.
	AllowedTypes []UpdateType
	// ExcludedNames drops dependencies by name regardless of ecosystem.
	ExcludedNames []string
}

// Accepts reports whether a single update passes the policy.
func (p UpdatePolicy) Accepts(update Update) bool {
	for _, excluded := range p.ExcludedNames {
		if update.Name == excluded {
			return false
		}
	}
	if len(p.AllowedTypes) == 0 {
		return true
	}
	updateType := update.Type()
	for _, allowed := range p.AllowedTypes {
		if updateType == allowed {
			return true
		}
	}
	return false
}

// FilterUpdates keeps the updates accepted by the policy, preserving their order.
func FilterUpdates(updates []Update, policy UpdatePolicy) []Update {
	kept := make([]Update, 0, len(updates))
	for _, update := range updates {
		if policy.Accepts(update) {
			kept = append(kept, update)
		}
	}
	return kept
}

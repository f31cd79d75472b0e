package service

// TrackedSessions reports how many sessions autosave holds a revision for.
func (a *AutosaveService) TrackedSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.lastRev)
}

package portal

// Watchers reports how many callers share the running payment watch.
func (a *App) Watchers() int {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.watch == nil {
		return 0
	}
	return len(a.watch.subs)
}

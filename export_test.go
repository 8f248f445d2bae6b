package lal

// LiveRegistrations counts callback registrations the engine has not
// destroyed yet.
func LiveRegistrations() int {
	n := 0
	registry.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

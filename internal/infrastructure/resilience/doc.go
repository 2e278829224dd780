/*
Package resilience provides the circuit breaker guarding calls to the package registry.

When the registry is down every pkg: import would otherwise wait out a full
network timeout. The breaker fails those calls fast once the registry has
produced enough consecutive transport or server errors. Settings.IsSuccessful
decides which errors count: a 404 for an unknown package says nothing about
registry health and never trips it.

	breaker := resilience.New("registry", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, registry.ErrPackageNotFound)
		},
	})

	meta, err := resilience.Do(breaker, func() (*registry.Packument, error) {
		return fetchMetadata(ctx, name)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open

While half-open at most Settings.MaxRequests trial requests pass; the rest get
ErrTooManyRequests.
*/
package resilience

// Package netmon observes reachability of the remote service and publishes
// a de-duplicated stream of connectivity states.
//
// # Delivery contract
//
// Updates() never yields the same value twice in a row. The channel holds a
// single slot: when the consumer falls behind, an unread value is replaced
// by the newer one, so after any burst of flapping the final state is always
// delivered and intermediate states may be skipped.
//
// # Lifecycle
//
// Run owns the polling goroutine and the underlying HTTP client. When its
// context is cancelled it returns and closes the Updates() channel, so a
// consumer ranging over it terminates deterministically:
//
//	mon := netmon.New(netmon.Config{Prober: netmon.NewHTTPProber(url, 2*time.Second)})
//	go mon.Run(ctx)
//	for online := range mon.Updates() {
//	    ...
//	}
package netmon

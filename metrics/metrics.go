package metrics

import "time"

// Recorder counts confirm outcomes and observes outbound-call latency.
type Recorder interface {
	IncOutcome(code string)
	ObserveLatency(operation string, d time.Duration)
}

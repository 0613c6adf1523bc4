package testutil

import (
	"sync"
	"testing"
)

var metricsTestMutex sync.Mutex

// LockMetrics serializes tests that reset or read the global Prometheus
// collectors in util/metrics. The lock is released by t.Cleanup.
//
//	func TestQueueGauge(t *testing.T) {
//	    testutil.LockMetrics(t)
//	    metrics.QueueLength.Reset()
//	    ...
//	}
func LockMetrics(t *testing.T) {
	t.Helper()
	metricsTestMutex.Lock()
	t.Cleanup(metricsTestMutex.Unlock)
}

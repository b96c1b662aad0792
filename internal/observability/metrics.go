package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests, chain submissions
// and reconciliation outcomes.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	chainOpCount   map[string]int64
	reconcileCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		chainOpCount:   make(map[string]int64),
		reconcileCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordChainOp counts one ledger submission by chain, op and outcome.
func (m *Metrics) RecordChainOp(chain, op, outcome string) {
	if m == nil {
		return
	}
	key := chain + "|" + op + "|" + outcome
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainOpCount[key]++
}

// RecordReconciliation counts one sweep resolution by outcome.
func (m *Metrics) RecordReconciliation(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileCount[outcome]++
}

// Snapshot returns copies of all counters, keyed by counter family.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"requests":        copyCounters(m.requestCount),
		"errors":          copyCounters(m.errorCount),
		"chain_ops":       copyCounters(m.chainOpCount),
		"reconciliations": copyCounters(m.reconcileCount),
	}
}

func copyCounters(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

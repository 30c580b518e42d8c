// Package synergy tracks the health and interconnection of the system's
// logical modules. It backs the session manager's module audit with
// best-effort diagnostics: connection counts, error rates, activity, and a
// blended synergy score per module.
package synergy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ModuleStatus classifies a module's health at audit time.
type ModuleStatus string

const (
	StatusHealthy      ModuleStatus = "healthy"
	StatusWarning      ModuleStatus = "warning"
	StatusCritical     ModuleStatus = "critical"
	StatusDisconnected ModuleStatus = "disconnected"
)

// Audit thresholds.
const (
	criticalErrorCount = 10
	warningSynergy     = 0.5
	staleActivityAge   = 5 * time.Minute
)

// ModuleAudit is the result of auditing one module.
type ModuleAudit struct {
	ModuleName   string
	Status       ModuleStatus
	SynergyScore float64
	Connections  int
	LastChecked  time.Time
	Issues       []string
}

// Metrics aggregates coordinator-wide performance counters.
type Metrics struct {
	TotalOperations    uint64
	SynergyCoefficient float64
}

type moduleMetrics struct {
	connections  map[string]float64 // peer name -> strength
	messageCount uint64
	errorCount   uint64
	lastActivity time.Time
}

// Coordinator tracks module registrations and their synergy connections.
// Instances are explicitly owned and injected, never process-wide singletons,
// so tests can instantiate isolated coordinators.
type Coordinator struct {
	mu sync.RWMutex

	modules map[string]*moduleMetrics
	order   []string

	totalOperations uint64
	logger          *zap.Logger
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		modules: make(map[string]*moduleMetrics),
		logger:  logger,
	}
}

// RegisterModule adds a module to the registry. Re-registration resets its
// metrics.
func (c *Coordinator) RegisterModule(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.modules[name]; !ok {
		c.order = append(c.order, name)
	}
	c.modules[name] = &moduleMetrics{
		connections:  make(map[string]float64),
		lastActivity: time.Now(),
	}

	c.logger.Debug("module registered", zap.String("module", name))
}

// EstablishConnection records a bidirectional synergy connection between two
// modules with the given strength in [0, 1].
func (c *Coordinator) EstablishConnection(moduleA, moduleB string, strength float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.modules[moduleA]; ok {
		m.connections[moduleB] = strength
	}
	if m, ok := c.modules[moduleB]; ok {
		m.connections[moduleA] = strength
	}
}

// RecordActivity notes that a module performed an operation.
func (c *Coordinator) RecordActivity(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.modules[name]; ok {
		m.messageCount++
		m.lastActivity = time.Now()
	}
	c.totalOperations++
}

// RecordError notes a module failure.
func (c *Coordinator) RecordError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.modules[name]; ok {
		m.errorCount++
	}
	c.logger.Warn("module error recorded",
		zap.String("module", name),
		zap.Error(err),
	)
}

// AuditModules audits every registered module in registration order.
func (c *Coordinator) AuditModules() []ModuleAudit {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	audits := make([]ModuleAudit, 0, len(c.order))

	for _, name := range c.order {
		m := c.modules[name]
		score := c.synergyScore(m)

		var issues []string
		var status ModuleStatus
		switch {
		case m.errorCount > criticalErrorCount:
			issues = append(issues, "high error count")
			status = StatusCritical
		case len(m.connections) == 0:
			issues = append(issues, "module has no synergy connections")
			status = StatusDisconnected
		case score < warningSynergy:
			issues = append(issues, "low synergy score")
			status = StatusWarning
		default:
			status = StatusHealthy
		}

		if now.Sub(m.lastActivity) > staleActivityAge {
			issues = append(issues, "no recent activity")
		}

		audits = append(audits, ModuleAudit{
			ModuleName:   name,
			Status:       status,
			SynergyScore: score,
			Connections:  len(m.connections),
			LastChecked:  now,
			Issues:       issues,
		})
	}
	return audits
}

// GetMetrics returns coordinator-wide performance counters.
func (c *Coordinator) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	coefficient := 0.0
	if len(c.modules) > 0 {
		for _, m := range c.modules {
			coefficient += c.synergyScore(m)
		}
		coefficient /= float64(len(c.modules))
	}

	return Metrics{
		TotalOperations:    c.totalOperations,
		SynergyCoefficient: coefficient,
	}
}

// HealthReport renders a plain-text summary of the latest audit.
func (c *Coordinator) HealthReport() string {
	audits := c.AuditModules()
	metrics := c.GetMetrics()

	var b strings.Builder
	b.WriteString("module synergy report\n")
	fmt.Fprintf(&b, "total operations: %d\n", metrics.TotalOperations)
	fmt.Fprintf(&b, "synergy coefficient: %.2f\n\n", metrics.SynergyCoefficient)

	for _, audit := range audits {
		fmt.Fprintf(&b, "%-12s %s (synergy %.2f, connections %d)\n",
			audit.Status, audit.ModuleName, audit.SynergyScore, audit.Connections)
		for _, issue := range audit.Issues {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
	}
	return b.String()
}

// synergyScore blends connectivity (share of possible peers connected) and
// average connection strength, weighted equally. Callers hold at least a
// read lock.
func (c *Coordinator) synergyScore(m *moduleMetrics) float64 {
	maxPeers := float64(len(c.modules) - 1)
	if maxPeers <= 0 {
		return 1.0
	}

	totalStrength := 0.0
	for _, strength := range m.connections {
		totalStrength += strength
	}

	averageStrength := 0.0
	if len(m.connections) > 0 {
		averageStrength = totalStrength / float64(len(m.connections))
	}

	connectivity := float64(len(m.connections)) / maxPeers
	return connectivity*0.5 + averageStrength*0.5
}

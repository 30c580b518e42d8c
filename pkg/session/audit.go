package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/eventstream"
	"github.com/meshmindco/meshmind/pkg/graph"
	"github.com/meshmindco/meshmind/pkg/synergy"
)

// Core module names registered with the synergy coordinator.
const (
	ModuleRouter  = "router"
	ModuleSession = "session"
	ModuleGraph   = "graph"
	ModuleBridge  = "bridge"
)

// Audit projection names.
const (
	modulePrefix = "module:"

	predModuleStatus = "module_status"
	predAuditedBy    = "audited_by"
)

// CoreModules lists the logical modules every manager registers with its
// coordinator at construction time.
func CoreModules() []string {
	return []string{ModuleRouter, ModuleSession, ModuleGraph, ModuleBridge}
}

// coreConnections are the structural couplings between core modules. The
// session manager drives the router and the graph directly; the bridge
// reads and writes the graph but only observes sessions.
var coreConnections = []struct {
	a, b     string
	strength float64
}{
	{ModuleSession, ModuleRouter, 0.9},
	{ModuleSession, ModuleGraph, 0.9},
	{ModuleBridge, ModuleGraph, 0.8},
	{ModuleSession, ModuleBridge, 0.6},
}

// registerCoreModules seeds a coordinator with the core modules and their
// structural connections.
func registerCoreModules(c *synergy.Coordinator) {
	for _, module := range CoreModules() {
		c.RegisterModule(module)
	}
	for _, conn := range coreConnections {
		c.EstablishConnection(conn.a, conn.b, conn.strength)
	}
}

// AuditCoreModules audits every core module through the coordinator and
// projects the results into the graph: one module node per module, a status
// evaluation link recording its audited state, and membership links from
// every Active session to the session module node. Each audited module also
// emits a lifecycle event. Graph failures degrade to logged warnings; the
// audit result itself never fails.
func (m *Manager) AuditCoreModules(ctx context.Context) []synergy.ModuleAudit {
	audits := m.coordinator.AuditModules()

	for _, audit := range audits {
		m.writeModuleAudit(ctx, audit)
		m.publish(ctx, eventstream.Event{
			Type:   eventstream.TypeModuleAudited,
			Module: audit.ModuleName,
			Status: string(audit.Status),
		})
	}
	m.writeActiveSessionMembership(ctx)

	m.coordinator.RecordActivity(ModuleSession)
	m.logger.Info("core modules audited",
		zap.Int("modules", len(audits)),
		zap.Float64("synergy_coefficient", m.coordinator.GetMetrics().SynergyCoefficient),
	)
	return audits
}

// HealthReport renders the coordinator's plain-text module summary.
func (m *Manager) HealthReport() string {
	return m.coordinator.HealthReport()
}

// writeModuleAudit records eval(module_status, list(module, status)) for one
// audited module.
func (m *Manager) writeModuleAudit(ctx context.Context, audit synergy.ModuleAudit) {
	moduleNode, err := m.store.AddNode(ctx, graph.NodeModule, modulePrefix+audit.ModuleName)
	if err != nil {
		m.logger.Warn("writing module node failed",
			zap.String("module", audit.ModuleName),
			zap.Error(err),
		)
		return
	}

	predNode, err := m.store.AddNode(ctx, graph.NodePredicate, predModuleStatus)
	if err == nil {
		statusNode, serr := m.store.AddNode(ctx, graph.NodeConcept, string(audit.Status))
		if serr == nil {
			listLink, lerr := m.store.AddLink(ctx, graph.LinkList, moduleNode, statusNode)
			if lerr == nil {
				_, lerr = m.store.AddLink(ctx, graph.LinkEvaluation, predNode, listLink)
			}
			serr = lerr
		}
		err = serr
	}
	if err != nil {
		m.logger.Warn("writing module status failed",
			zap.String("module", audit.ModuleName),
			zap.Error(err),
		)
	}
}

// writeActiveSessionMembership links every Active session into the session
// module node, and tags it with the auditing predicate so graph queries can
// distinguish audited membership from conversation membership.
func (m *Manager) writeActiveSessionMembership(ctx context.Context) {
	m.mu.RLock()
	var active []string
	for id, s := range m.sessions {
		if m.isActiveLocked(s) {
			active = append(active, id)
		}
	}
	m.mu.RUnlock()

	if len(active) == 0 {
		return
	}

	moduleNode, err := m.store.AddNode(ctx, graph.NodeModule, modulePrefix+ModuleSession)
	if err != nil {
		m.logger.Warn("writing session module node failed", zap.Error(err))
		return
	}
	predNode, err := m.store.AddNode(ctx, graph.NodePredicate, predAuditedBy)
	if err != nil {
		m.logger.Warn("writing audit predicate failed", zap.Error(err))
		return
	}

	for _, id := range active {
		sessionNode, err := m.store.AddNode(ctx, graph.NodeSession, sessionPrefix+id)
		if err != nil {
			m.logger.Warn("writing session node failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
			continue
		}

		_, err = m.store.AddLink(ctx, graph.LinkMember, sessionNode, moduleNode)
		if err == nil {
			var listLink graph.Ref
			listLink, err = m.store.AddLink(ctx, graph.LinkList, sessionNode, moduleNode)
			if err == nil {
				_, err = m.store.AddLink(ctx, graph.LinkEvaluation, predNode, listLink)
			}
		}
		if err != nil {
			m.logger.Warn("writing session membership failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
	}
}

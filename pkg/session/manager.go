// Package session owns the table of live conversations and their lifecycle:
// created, resumed, mediated, persisted, evicted.
//
// A session is Active while it was accessed within the manager's active
// window. Mediation is the central tick: an Active session has its
// conversation synchronized into the graph; an inactive one is persisted.
// Cleanup evicts aged-out non-persistent sessions from memory only; the
// graph projection survives, so a later resume by name can reattach.
package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/convo"
	"github.com/meshmindco/meshmind/pkg/eventstream"
	streamnop "github.com/meshmindco/meshmind/pkg/eventstream/nop"
	"github.com/meshmindco/meshmind/pkg/graph"
	"github.com/meshmindco/meshmind/pkg/graph/nop"
	"github.com/meshmindco/meshmind/pkg/llm"
	"github.com/meshmindco/meshmind/pkg/llm/backend"
	"github.com/meshmindco/meshmind/pkg/llm/router"
	"github.com/meshmindco/meshmind/pkg/synergy"
)

// DefaultActiveWindow is how recently a session must have been accessed to
// count as Active. Overridable via Config.ActiveWindow.
const DefaultActiveWindow = time.Hour

// Graph projection names.
const (
	sessionPrefix = "session:"
	namePrefix    = "session_name:"

	predNamedSession = "named_session"
	predHasProvider  = "has_provider"
	predHasModel     = "has_model"
	predCreatedAt    = "created_at"
	predLastUpdated  = "last_updated"
	predPersistent   = "persistent"
)

// BackendFactory constructs backend clients; injectable for tests.
type BackendFactory func(backend.ClientConfig) (llm.Backend, error)

// ProviderConfig pairs a backend's routing profile with its client
// construction parameters.
type ProviderConfig struct {
	Profile router.CapabilityProfile
	Client  backend.ClientConfig
}

// Config holds construction parameters for a Manager.
type Config struct {
	// Store is the graph memory store. Defaults to the null store.
	Store graph.Store

	// Router selects backends. A fresh empty router is created when nil.
	Router *router.Router

	// Coordinator tracks module synergy for audits. Created when nil.
	Coordinator *synergy.Coordinator

	// Logger is the zap logger. Defaults to a no-op logger.
	Logger *zap.Logger

	// Publisher receives lifecycle events. Defaults to the no-op publisher.
	Publisher eventstream.Publisher

	// ActiveWindow overrides DefaultActiveWindow when > 0.
	ActiveWindow time.Duration

	// Factory overrides backend construction; defaults to backend.New.
	Factory BackendFactory
}

type liveSession struct {
	conversation *convo.Conversation
	metadata     Metadata
}

// Manager owns the session table. It is safe for concurrent use; backend and
// graph I/O never run while the table lock is held.
type Manager struct {
	mu sync.RWMutex

	sessions  map[string]*liveSession
	providers map[string]ProviderConfig

	store        graph.Store
	router       *router.Router
	coordinator  *synergy.Coordinator
	publisher    eventstream.Publisher
	logger       *zap.Logger
	activeWindow time.Duration
	factory      BackendFactory

	// now is injectable for lifecycle tests.
	now func() time.Time
}

// NewManager creates a session manager.
func NewManager(cfg Config) *Manager {
	if cfg.Store == nil {
		cfg.Store = nop.New()
	}
	if cfg.Router == nil {
		cfg.Router = router.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = DefaultActiveWindow
	}
	if cfg.Factory == nil {
		cfg.Factory = backend.New
	}
	if cfg.Coordinator == nil {
		cfg.Coordinator = synergy.NewCoordinator(cfg.Logger)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = streamnop.New()
	}

	m := &Manager{
		sessions:     make(map[string]*liveSession),
		providers:    make(map[string]ProviderConfig),
		store:        cfg.Store,
		router:       cfg.Router,
		coordinator:  cfg.Coordinator,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
		activeWindow: cfg.ActiveWindow,
		factory:      cfg.Factory,
		now:          time.Now,
	}

	registerCoreModules(m.coordinator)

	return m
}

// RegisterProvider registers a backend's capability profile with the router
// and retains its client construction parameters. Re-registration replaces.
func (m *Manager) RegisterProvider(name string, cfg ProviderConfig) {
	cfg.Client.Provider = name

	m.mu.Lock()
	m.providers[name] = cfg
	m.mu.Unlock()

	m.router.Register(name, cfg.Profile)
}

// Router exposes the manager's provider capability router.
func (m *Manager) Router() *router.Router {
	return m.router
}

// CreatePersistentSession allocates a fresh persistent session backed by a
// newly constructed backend client, writes its graph projection and name
// mapping, and returns the session id. Fails with backend.ConstructionError
// when the provider cannot be instantiated.
func (m *Manager) CreatePersistentSession(ctx context.Context, name, provider, model string) (string, error) {
	return m.createSession(ctx, name, provider, model, true)
}

// CreateSession allocates a fresh anonymous, non-persistent session. No name
// mapping is written, and cleanup may evict it once it ages out; mediating it
// while inactive still persists it in the graph.
func (m *Manager) CreateSession(ctx context.Context, provider, model string) (string, error) {
	return m.createSession(ctx, "", provider, model, false)
}

func (m *Manager) createSession(ctx context.Context, name, provider, model string, persistent bool) (string, error) {
	client, err := m.buildBackend(provider, model)
	if err != nil {
		return "", err
	}

	sessionID := generateSessionID()
	now := m.now()

	conversation := convo.New(convo.Config{
		ID:      sessionID,
		Backend: client,
		Store:   m.store,
		Logger:  m.logger,
	})

	metadata := Metadata{
		SessionID:      sessionID,
		Provider:       provider,
		Model:          model,
		CreatedAt:      now,
		LastAccessedAt: now,
		IsPersistent:   persistent,
	}
	metadata.GraphNodeRef = m.writeSessionProjection(ctx, name, metadata)

	m.mu.Lock()
	m.sessions[sessionID] = &liveSession{
		conversation: conversation,
		metadata:     metadata,
	}
	m.mu.Unlock()

	m.coordinator.RecordActivity(ModuleSession)
	m.publish(ctx, eventstream.Event{
		Type:       eventstream.TypeSessionCreated,
		SessionID:  sessionID,
		Provider:   provider,
		Persistent: persistent,
	})
	m.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.String("provider", provider),
		zap.String("model", model),
	)
	return sessionID, nil
}

// ResumeSession looks the name up in the graph and reattaches the prior
// session, refreshing its last-access time and reloading its conversation.
// When no mapping exists it falls back to CreatePersistentSession: resume is
// create-or-attach, never an error for "not found".
func (m *Manager) ResumeSession(ctx context.Context, name, provider, model string) (string, error) {
	sessionID, found := m.lookupSessionByName(ctx, name)
	if !found {
		return m.CreatePersistentSession(ctx, name, provider, model)
	}

	m.mu.RLock()
	_, live := m.sessions[sessionID]
	m.mu.RUnlock()

	if live {
		m.touch(sessionID)
		return sessionID, nil
	}

	// Evicted or restarted: rebuild the in-memory state from the graph.
	client, err := m.buildBackend(provider, model)
	if err != nil {
		return "", err
	}

	conversation := convo.New(convo.Config{
		ID:      sessionID,
		Backend: client,
		Store:   m.store,
		Logger:  m.logger,
	})
	conversation.Load(ctx, sessionID)

	now := m.now()
	metadata := Metadata{
		SessionID:      sessionID,
		Provider:       provider,
		Model:          model,
		CreatedAt:      now,
		LastAccessedAt: now,
		MessageCount:   conversation.Len(),
		IsPersistent:   true,
		GraphNodeRef:   graph.NodeRef(graph.NodeSession, sessionPrefix+sessionID),
	}

	m.mu.Lock()
	m.sessions[sessionID] = &liveSession{
		conversation: conversation,
		metadata:     metadata,
	}
	m.mu.Unlock()

	m.logger.Info("session resumed",
		zap.String("session_id", sessionID),
		zap.String("name", name),
		zap.Int("messages", metadata.MessageCount),
	)
	return sessionID, nil
}

// MediateSession is the central lifecycle tick. An Active session has its
// in-memory messages synchronized into the graph and its metadata refreshed;
// an inactive one is persisted: fully flushed and marked persistent in the
// graph regardless of the in-memory flag. Graph failures degrade to logged
// warnings; the live conversation is never lost to a durability error.
func (m *Manager) MediateSession(ctx context.Context, sessionID string) error {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.RUnlock()
		return NotFoundError{SessionID: sessionID}
	}
	conversation := s.conversation
	active := m.isActiveLocked(s)
	m.mu.RUnlock()

	// Graph I/O runs without the table lock; create-or-get writes make
	// re-synchronizing an unchanged session a no-op.
	conversation.Save(ctx, sessionID)
	if !active {
		m.markPersistent(ctx, sessionID)
	}

	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		s.metadata.LastAccessedAt = m.now()
		s.metadata.MessageCount = s.conversation.Len()
	}
	m.mu.Unlock()

	m.coordinator.RecordActivity(ModuleSession)
	return nil
}

// CleanupInactiveSessions evicts every non-persistent session whose last
// access is older than maxAge, returning the evicted session ids. Persistent
// sessions are never evicted here. Eviction drops in-memory state only; the
// graph projection is left intact by design, so this is memory-pressure
// relief rather than deletion.
func (m *Manager) CleanupInactiveSessions(maxAge time.Duration) []string {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	var evicted []string
	var evictedMeta []Metadata
	for id, s := range m.sessions {
		if s.metadata.IsPersistent {
			continue
		}
		if s.metadata.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, id)
			evictedMeta = append(evictedMeta, s.metadata)
		}
	}
	m.mu.Unlock()

	for _, metadata := range evictedMeta {
		m.publish(context.Background(), eventstream.Event{
			Type:      eventstream.TypeSessionEvicted,
			SessionID: metadata.SessionID,
			Provider:  metadata.Provider,
			Messages:  metadata.MessageCount,
		})
	}

	if len(evicted) > 0 {
		m.logger.Info("evicted inactive sessions", zap.Strings("session_ids", evicted))
	}
	return evicted
}

// Conversation returns the live conversation for a session.
func (m *Manager) Conversation(sessionID string) (*convo.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, NotFoundError{SessionID: sessionID}
	}
	return s.conversation, nil
}

// Metadata returns a copy of the session's metadata.
func (m *Manager) Metadata(sessionID string) (Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Metadata{}, NotFoundError{SessionID: sessionID}
	}
	return s.metadata, nil
}

// ListSessions returns metadata for every live session.
func (m *Manager) ListSessions() []Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]Metadata, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.metadata)
	}
	return sessions
}

// SessionsByProvider returns metadata for every live session on the given
// provider.
func (m *Manager) SessionsByProvider(provider string) []Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []Metadata
	for _, s := range m.sessions {
		if s.metadata.Provider == provider {
			sessions = append(sessions, s.metadata)
		}
	}
	return sessions
}

// IsActive reports whether the session was accessed within the active window.
func (m *Manager) IsActive(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	return m.isActiveLocked(s)
}

func (m *Manager) isActiveLocked(s *liveSession) bool {
	return m.now().Sub(s.metadata.LastAccessedAt) < m.activeWindow
}

func (m *Manager) touch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		s.metadata.LastAccessedAt = m.now()
	}
}

// buildBackend merges the registered provider config with the requested
// model and constructs a client.
func (m *Manager) buildBackend(provider, model string) (llm.Backend, error) {
	m.mu.RLock()
	cfg := m.providers[provider]
	m.mu.RUnlock()

	// Unregistered providers still reach the factory, which rejects
	// unknown names with a ConstructionError.
	client := cfg.Client
	client.Provider = provider
	if model != "" {
		client.Model = model
	}
	return m.factory(client)
}

// writeSessionProjection writes the session node, its metadata evaluation
// links, and (for named sessions) the name mapping. Best effort: failures
// log and return RefNil.
func (m *Manager) writeSessionProjection(ctx context.Context, name string, metadata Metadata) graph.Ref {
	sessionNode, err := m.store.AddNode(ctx, graph.NodeSession, sessionPrefix+metadata.SessionID)
	if err != nil {
		m.logger.Warn("writing session node failed",
			zap.String("session_id", metadata.SessionID),
			zap.Error(err),
		)
		return graph.RefNil
	}

	m.writeAttribute(ctx, sessionNode, predHasProvider, metadata.Provider)
	m.writeAttribute(ctx, sessionNode, predHasModel, metadata.Model)
	m.writeAttribute(ctx, sessionNode, predCreatedAt, strconv.FormatInt(metadata.CreatedAt.Unix(), 10))

	if name == "" {
		return sessionNode
	}

	nameNode, err := m.store.AddNode(ctx, graph.NodeConcept, namePrefix+name)
	if err != nil {
		m.logger.Warn("writing session name node failed", zap.Error(err))
		return sessionNode
	}

	predNode, err := m.store.AddNode(ctx, graph.NodePredicate, predNamedSession)
	if err == nil {
		listLink, lerr := m.store.AddLink(ctx, graph.LinkList, nameNode, sessionNode)
		if lerr == nil {
			_, lerr = m.store.AddLink(ctx, graph.LinkEvaluation, predNode, listLink)
		}
		err = lerr
	}
	if err != nil {
		m.logger.Warn("writing session name mapping failed", zap.Error(err))
	}

	return sessionNode
}

func (m *Manager) writeAttribute(ctx context.Context, sessionNode graph.Ref, predicate, value string) {
	predNode, err := m.store.AddNode(ctx, graph.NodePredicate, predicate)
	if err == nil {
		valueNode, verr := m.store.AddNode(ctx, graph.NodeConcept, value)
		if verr == nil {
			listLink, lerr := m.store.AddLink(ctx, graph.LinkList, sessionNode, valueNode)
			if lerr == nil {
				_, lerr = m.store.AddLink(ctx, graph.LinkEvaluation, predNode, listLink)
			}
			verr = lerr
		}
		err = verr
	}
	if err != nil {
		m.logger.Warn("writing session attribute failed",
			zap.String("predicate", predicate),
			zap.Error(err),
		)
	}
}

// markPersistent marks the session node persistent in the graph, independent
// of the in-memory flag. Idempotent.
func (m *Manager) markPersistent(ctx context.Context, sessionID string) {
	sessionNode, err := m.store.AddNode(ctx, graph.NodeSession, sessionPrefix+sessionID)
	if err != nil {
		m.logger.Warn("marking session persistent failed", zap.Error(err))
		return
	}
	m.writeAttribute(ctx, sessionNode, predPersistent, "true")
}

// lookupSessionByName walks the graph's name-mapping links to find the
// session id registered under name.
func (m *Manager) lookupSessionByName(ctx context.Context, name string) (string, bool) {
	nameNode, err := m.store.FindNode(ctx, graph.NodeConcept, namePrefix+name)
	if err != nil || nameNode == graph.RefNil {
		return "", false
	}

	incident, err := m.store.GetIncident(ctx, nameNode)
	if err != nil {
		return "", false
	}

	for _, link := range incident {
		linkType, _, err := m.store.NodeName(ctx, link)
		if err != nil || linkType != graph.LinkList {
			continue
		}

		pair, err := m.store.GetOutgoing(ctx, link)
		if err != nil || len(pair) != 2 || pair[0] != nameNode {
			continue
		}

		if !m.isNamedSessionMapping(ctx, link) {
			continue
		}

		_, sessionName, err := m.store.NodeName(ctx, pair[1])
		if err != nil || !strings.HasPrefix(sessionName, sessionPrefix) {
			continue
		}
		return strings.TrimPrefix(sessionName, sessionPrefix), true
	}
	return "", false
}

// isNamedSessionMapping reports whether the list link is wrapped by a
// named_session evaluation link.
func (m *Manager) isNamedSessionMapping(ctx context.Context, listLink graph.Ref) bool {
	incident, err := m.store.GetIncident(ctx, listLink)
	if err != nil {
		return false
	}

	for _, link := range incident {
		linkType, _, err := m.store.NodeName(ctx, link)
		if err != nil || linkType != graph.LinkEvaluation {
			continue
		}

		outgoing, err := m.store.GetOutgoing(ctx, link)
		if err != nil || len(outgoing) != 2 {
			continue
		}

		_, predName, err := m.store.NodeName(ctx, outgoing[0])
		if err == nil && predName == predNamedSession {
			return true
		}
	}
	return false
}

// publish delivers a lifecycle event best effort; failures never gate the
// session operation that produced them.
func (m *Manager) publish(ctx context.Context, event eventstream.Event) {
	event.OccurredAt = m.now().UTC()
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("publishing lifecycle event failed",
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

func generateSessionID() string {
	return "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

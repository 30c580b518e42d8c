// Package convo holds the append-only conversation state for one logical
// session and keeps it synchronized with the knowledge graph.
//
// The in-memory message log is authoritative. Graph writes are best effort:
// losing graph durability never loses the live conversation. All graph
// writes go through create-or-get store semantics, so re-synchronizing an
// unchanged conversation is a no-op.
package convo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/graph"
	"github.com/meshmindco/meshmind/pkg/graph/nop"
	"github.com/meshmindco/meshmind/pkg/llm"
)

// Graph projection names.
const (
	// conversationPrefix namespaces session nodes for conversations.
	conversationPrefix = "conversation:"

	// predTimestamp is the predicate name for the last-updated evaluation link.
	predTimestamp = "last_updated"
)

// ErrNoMessages is returned by Complete when the conversation is empty.
var ErrNoMessages = errors.New("no messages in conversation")

// Config holds construction parameters for a Conversation.
type Config struct {
	// ID is the conversation identifier. A fresh UUID is allocated when empty.
	ID string

	// Backend serves completion requests for this conversation.
	Backend llm.Backend

	// Store is the graph memory store. Defaults to the null store.
	Store graph.Store

	// Logger is the zap logger. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Conversation is an ordered, append-only log of role-tagged messages with
// methods to materialize to and from the graph. All mutation is serialized
// by an internal lock, so append order is exactly call order.
type Conversation struct {
	mu sync.Mutex

	id       string
	messages []llm.Message

	backend llm.Backend
	store   graph.Store
	logger  *zap.Logger
}

// New creates an empty conversation.
func New(cfg Config) *Conversation {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Store == nil {
		cfg.Store = nop.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Conversation{
		id:      cfg.ID,
		backend: cfg.Backend,
		store:   cfg.Store,
		logger:  cfg.Logger,
	}
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Backend returns the backend client serving this conversation.
func (c *Conversation) Backend() llm.Backend {
	return c.backend
}

// AddMessage appends a message to the in-memory log and mirrors it into the
// graph. The graph write is best effort; the append always succeeds.
func (c *Conversation) AddMessage(ctx context.Context, role, content string) {
	c.mu.Lock()
	c.messages = append(c.messages, llm.NewMessage(role, content))
	id := c.id
	c.mu.Unlock()

	if err := c.writeMessage(ctx, id, role, content); err != nil {
		c.logger.Warn("graph write for message failed",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
	}
}

// Complete sends the conversation to the backend, appends the assistant's
// reply, and returns it. The message list is copied before the backend call
// so no lock is held during network I/O.
func (c *Conversation) Complete(ctx context.Context) (string, error) {
	messages := c.Messages()
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	reply, err := c.backend.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	c.AddMessage(ctx, llm.RoleAssistant, reply)
	return reply, nil
}

// CompleteStreaming streams the backend's reply through onChunk and appends
// the accumulated reply once the stream completes.
func (c *Conversation) CompleteStreaming(ctx context.Context, onChunk func(string)) error {
	messages := c.Messages()
	if len(messages) == 0 {
		return ErrNoMessages
	}

	full := ""
	err := c.backend.CompleteStreaming(ctx, messages, func(chunk string) {
		full += chunk
		onChunk(chunk)
	})
	if err != nil {
		return err
	}

	if full != "" {
		c.AddMessage(ctx, llm.RoleAssistant, full)
	}
	return nil
}

// Messages returns a copy of the message log in append order.
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]llm.Message, len(c.messages))
	copy(messages, c.messages)
	return messages
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// ClearHistory resets the log to empty without changing the conversation's
// identity, and detaches the membership links in the graph.
func (c *Conversation) ClearHistory(ctx context.Context) {
	c.mu.Lock()
	c.messages = nil
	id := c.id
	c.mu.Unlock()

	node, err := c.store.FindNode(ctx, graph.NodeSession, conversationPrefix+id)
	if err != nil || node == graph.RefNil {
		return
	}

	incident, err := c.store.GetIncident(ctx, node)
	if err != nil {
		c.logger.Warn("clearing graph membership failed",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
		return
	}

	for _, link := range incident {
		linkType, _, err := c.store.NodeName(ctx, link)
		if err != nil || linkType != graph.LinkMember {
			continue
		}
		if err := c.store.Remove(ctx, link); err != nil {
			c.logger.Warn("removing membership link failed", zap.Error(err))
		}
	}
}

// Save re-tags the conversation under the given identifier and writes the
// full graph projection: the session node, a last-updated evaluation link,
// and a membership link per message. Idempotent thanks to create-or-get
// store writes; graph failures degrade to a logged warning.
func (c *Conversation) Save(ctx context.Context, conversationID string) {
	c.mu.Lock()
	c.id = conversationID
	messages := make([]llm.Message, len(c.messages))
	copy(messages, c.messages)
	c.mu.Unlock()

	node, err := c.store.AddNode(ctx, graph.NodeSession, conversationPrefix+conversationID)
	if err != nil {
		c.logger.Warn("saving conversation node failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return
	}

	if err := c.writeTimestamp(ctx, node); err != nil {
		c.logger.Warn("writing timestamp link failed", zap.Error(err))
	}

	for _, m := range messages {
		if err := c.writeMessage(ctx, conversationID, m.Role, m.Content); err != nil {
			c.logger.Warn("saving message to graph failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}
}

// Load clears the log and reconstructs it from the graph projection of the
// given conversation. A missing conversation soft-fails to an empty log with
// a warning: no prior conversation is an expected first-use case.
func (c *Conversation) Load(ctx context.Context, conversationID string) {
	c.mu.Lock()
	c.id = conversationID
	c.messages = nil
	c.mu.Unlock()

	node, err := c.store.FindNode(ctx, graph.NodeSession, conversationPrefix+conversationID)
	if err != nil {
		c.logger.Warn("graph lookup failed during load",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return
	}
	if node == graph.RefNil {
		c.logger.Warn("conversation not found in graph",
			zap.String("conversation_id", conversationID),
		)
		return
	}

	incident, err := c.store.GetIncident(ctx, node)
	if err != nil {
		c.logger.Warn("reading membership links failed", zap.Error(err))
		return
	}

	loaded := 0
	for _, link := range incident {
		linkType, _, err := c.store.NodeName(ctx, link)
		if err != nil || linkType != graph.LinkMember {
			continue
		}

		outgoing, err := c.store.GetOutgoing(ctx, link)
		if err != nil || len(outgoing) < 2 {
			continue
		}

		role, content, err := c.readMessage(ctx, outgoing[0])
		if err != nil {
			c.logger.Warn("decoding message from graph failed", zap.Error(err))
			continue
		}

		c.mu.Lock()
		c.messages = append(c.messages, llm.NewMessage(role, content))
		c.mu.Unlock()
		loaded++
	}

	c.logger.Info("loaded conversation from graph",
		zap.String("conversation_id", conversationID),
		zap.Int("messages", loaded),
	)
}

// writeMessage writes one message's graph projection: a message link over
// (role, content) concept nodes plus a membership link to the session node.
func (c *Conversation) writeMessage(ctx context.Context, conversationID, role, content string) error {
	roleNode, err := c.store.AddNode(ctx, graph.NodeConcept, role)
	if err != nil {
		return fmt.Errorf("adding role node: %w", err)
	}

	contentNode, err := c.store.AddNode(ctx, graph.NodeConcept, content)
	if err != nil {
		return fmt.Errorf("adding content node: %w", err)
	}

	msgLink, err := c.store.AddLink(ctx, graph.LinkList, roleNode, contentNode)
	if err != nil {
		return fmt.Errorf("adding message link: %w", err)
	}

	sessionNode, err := c.store.AddNode(ctx, graph.NodeSession, conversationPrefix+conversationID)
	if err != nil {
		return fmt.Errorf("adding conversation node: %w", err)
	}

	if _, err := c.store.AddLink(ctx, graph.LinkMember, msgLink, sessionNode); err != nil {
		return fmt.Errorf("adding membership link: %w", err)
	}
	return nil
}

// readMessage inverts writeMessage for one message link.
func (c *Conversation) readMessage(ctx context.Context, msgLink graph.Ref) (string, string, error) {
	pair, err := c.store.GetOutgoing(ctx, msgLink)
	if err != nil {
		return "", "", err
	}
	if len(pair) != 2 {
		return "", "", fmt.Errorf("message link has %d members, want 2", len(pair))
	}

	_, role, err := c.store.NodeName(ctx, pair[0])
	if err != nil {
		return "", "", err
	}
	_, content, err := c.store.NodeName(ctx, pair[1])
	if err != nil {
		return "", "", err
	}
	return role, content, nil
}

func (c *Conversation) writeTimestamp(ctx context.Context, sessionNode graph.Ref) error {
	tsNode, err := c.store.AddNode(ctx, graph.NodeConcept, strconv.FormatInt(time.Now().Unix(), 10))
	if err != nil {
		return err
	}

	predNode, err := c.store.AddNode(ctx, graph.NodePredicate, predTimestamp)
	if err != nil {
		return err
	}

	listLink, err := c.store.AddLink(ctx, graph.LinkList, sessionNode, tsNode)
	if err != nil {
		return err
	}

	_, err = c.store.AddLink(ctx, graph.LinkEvaluation, predNode, listLink)
	return err
}

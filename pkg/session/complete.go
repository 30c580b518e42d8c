package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/convo"
	"github.com/meshmindco/meshmind/pkg/llm"
	"github.com/meshmindco/meshmind/pkg/llm/router"
)

// Complete appends the user message to the session's conversation and runs
// the completion through the fallback protocol: the session's own provider is
// tried first when eligible, then every remaining eligible backend in
// descending score order. The first successful reply is appended to the
// conversation and returned. When every eligible backend fails the aggregate
// ExhaustedProvidersError carries the attempt count and the final error.
func (m *Manager) Complete(ctx context.Context, sessionID, userMessage string) (string, error) {
	conversation, metadata, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}

	if userMessage != "" {
		conversation.AddMessage(ctx, llm.RoleUser, userMessage)
	}
	messages := conversation.Messages()

	candidates := m.rankWithPreferred(messages, metadata.Provider, llm.TaskChat)
	if len(candidates) == 0 {
		return "", router.NoEligibleProviderError{
			Kind:         llm.TaskChat,
			ContextChars: llm.TotalContentChars(messages),
		}
	}

	var last error
	for i, provider := range candidates {
		client, err := m.backendFor(conversation, metadata, provider)
		if err != nil {
			last = err
			m.coordinator.RecordError(ModuleRouter, err)
			continue
		}

		reply, err := client.Complete(ctx, messages)
		m.releaseFallback(conversation, client)
		if err != nil {
			last = llm.InvocationError{Provider: provider, Err: err}
			m.coordinator.RecordError(ModuleRouter, last)
			m.logger.Warn("provider failed, falling back",
				zap.String("session_id", sessionID),
				zap.String("provider", provider),
				zap.Int("remaining", len(candidates)-i-1),
				zap.Error(err),
			)
			continue
		}

		conversation.AddMessage(ctx, llm.RoleAssistant, reply)
		m.finishCompletion(sessionID, provider, metadata.Provider)
		return reply, nil
	}

	return "", ExhaustedProvidersError{Attempts: len(candidates), Last: last}
}

// CompleteStreaming is the streaming variant of Complete. Fallback moves to
// the next backend only when a stream fails before emitting any chunk;
// chunks already delivered to onChunk cannot be unsaid, so a mid-stream
// failure surfaces immediately.
func (m *Manager) CompleteStreaming(ctx context.Context, sessionID, userMessage string, onChunk func(string)) error {
	conversation, metadata, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	if userMessage != "" {
		conversation.AddMessage(ctx, llm.RoleUser, userMessage)
	}
	messages := conversation.Messages()

	candidates := m.rankWithPreferred(messages, metadata.Provider, llm.TaskStreaming)
	if len(candidates) == 0 {
		return router.NoEligibleProviderError{
			Kind:         llm.TaskStreaming,
			ContextChars: llm.TotalContentChars(messages),
		}
	}

	var last error
	for _, provider := range candidates {
		client, err := m.backendFor(conversation, metadata, provider)
		if err != nil {
			last = err
			m.coordinator.RecordError(ModuleRouter, err)
			continue
		}

		full := ""
		err = client.CompleteStreaming(ctx, messages, func(chunk string) {
			full += chunk
			onChunk(chunk)
		})
		m.releaseFallback(conversation, client)
		if err != nil {
			last = llm.InvocationError{Provider: provider, Err: err}
			m.coordinator.RecordError(ModuleRouter, last)
			if full != "" {
				// Partial output already reached the caller.
				return last
			}
			m.logger.Warn("streaming provider failed, falling back",
				zap.String("session_id", sessionID),
				zap.String("provider", provider),
				zap.Error(err),
			)
			continue
		}

		if full != "" {
			conversation.AddMessage(ctx, llm.RoleAssistant, full)
		}
		m.finishCompletion(sessionID, provider, metadata.Provider)
		return nil
	}

	return ExhaustedProvidersError{Attempts: len(candidates), Last: last}
}

// Embed routes an embedding request to the best eligible backend and returns
// the vector. Embedding requests carry no conversation context, so the
// ranking ignores context budgets.
func (m *Manager) Embed(ctx context.Context, sessionID, text string) ([]float32, error) {
	conversation, metadata, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	candidates := m.rankWithPreferred(nil, metadata.Provider, llm.TaskEmbedding)
	if len(candidates) == 0 {
		return nil, router.NoEligibleProviderError{Kind: llm.TaskEmbedding}
	}

	var last error
	for _, provider := range candidates {
		client, err := m.backendFor(conversation, metadata, provider)
		if err != nil {
			last = err
			continue
		}

		vector, err := client.Embed(ctx, text)
		m.releaseFallback(conversation, client)
		if err != nil {
			last = llm.InvocationError{Provider: provider, Err: err}
			continue
		}

		m.coordinator.RecordActivity(ModuleRouter)
		return vector, nil
	}

	return nil, ExhaustedProvidersError{Attempts: len(candidates), Last: last}
}

func (m *Manager) lookup(sessionID string) (*convo.Conversation, Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, Metadata{}, NotFoundError{SessionID: sessionID}
	}
	return s.conversation, s.metadata, nil
}

// rankWithPreferred ranks eligible backends by score and moves the preferred
// backend to the front when it is eligible at all, mirroring the router's
// preferred short-circuit.
func (m *Manager) rankWithPreferred(messages []llm.Message, preferred string, kind llm.TaskKind) []string {
	ranked := m.router.Rank(messages, kind)
	if preferred == "" {
		return ranked
	}

	for i, name := range ranked {
		if name == preferred && i > 0 {
			reordered := make([]string, 0, len(ranked))
			reordered = append(reordered, preferred)
			reordered = append(reordered, ranked[:i]...)
			reordered = append(reordered, ranked[i+1:]...)
			return reordered
		}
	}
	return ranked
}

// backendFor returns the conversation's own backend for the session's
// provider and a freshly built client for a fallback provider.
func (m *Manager) backendFor(conversation *convo.Conversation, metadata Metadata, provider string) (llm.Backend, error) {
	if provider == metadata.Provider {
		return conversation.Backend(), nil
	}
	return m.buildBackend(provider, "")
}

// releaseFallback closes a backend built for a single fallback attempt. The
// session's own backend stays open for the life of the conversation.
func (m *Manager) releaseFallback(conversation *convo.Conversation, client llm.Backend) {
	if client != conversation.Backend() {
		if err := client.Close(); err != nil {
			m.logger.Warn("closing fallback backend failed", zap.Error(err))
		}
	}
}

func (m *Manager) finishCompletion(sessionID, used, preferred string) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		s.metadata.LastAccessedAt = m.now()
		s.metadata.MessageCount = s.conversation.Len()
	}
	m.mu.Unlock()

	m.coordinator.RecordActivity(ModuleRouter)
	m.coordinator.RecordActivity(ModuleSession)
	if used != preferred {
		m.logger.Info("completion served by fallback provider",
			zap.String("session_id", sessionID),
			zap.String("provider", used),
			zap.String("preferred", preferred),
		)
	}
}

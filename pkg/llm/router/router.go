// Package router decides which registered backend should serve a request.
//
// Each backend is registered with an immutable capability profile. Routing
// computes an eligibility set for the request's task kind and context budget,
// scores the eligible backends, and returns the winner. Scoring is fully
// deterministic: for a fixed registry and a fixed request the same backend is
// returned every call, and ties resolve to the earlier-registered provider.
package router

import (
	"sync"

	"github.com/meshmindco/meshmind/pkg/llm"
)

// Scoring weights. A zero cost-per-token denotes a free or local backend and
// receives a fixed bonus instead of the inverse-cost term.
const (
	contextFitScore   = 10.0
	freeBackendBonus  = 5.0
	inverseCostWeight = 1e-6
	functionsBonus    = 2.0
	streamingBonus    = 1.0
)

// CapabilityProfile is the static metadata describing what a backend supports
// and its cost and context limits. Immutable once registered.
type CapabilityProfile struct {
	Name               string
	SupportsChat       bool
	SupportsStreaming  bool
	SupportsEmbeddings bool
	SupportsFunctions  bool
	SupportedModels    map[string]struct{}
	CostPerToken       float64
	MaxContextLength   int
}

// SupportsTask reports whether the profile supports the given task kind.
func (p CapabilityProfile) SupportsTask(kind llm.TaskKind) bool {
	switch kind {
	case llm.TaskChat:
		return p.SupportsChat
	case llm.TaskEmbedding:
		return p.SupportsEmbeddings
	case llm.TaskStreaming:
		return p.SupportsStreaming
	default:
		return false
	}
}

// SupportsModel reports whether the profile lists the given model. An empty
// model set means the backend accepts any model name.
func (p CapabilityProfile) SupportsModel(model string) bool {
	if len(p.SupportedModels) == 0 {
		return true
	}
	_, ok := p.SupportedModels[model]
	return ok
}

// Router holds the registry of backend capability profiles and the selection
// algorithm. A Router is safe for concurrent use.
type Router struct {
	mu sync.RWMutex

	// profiles maps provider name to its registered capability profile.
	profiles map[string]CapabilityProfile

	// order preserves registration order for deterministic tie-breaking.
	order []string
}

// New creates an empty router.
func New() *Router {
	return &Router{
		profiles: make(map[string]CapabilityProfile),
	}
}

// Register inserts or overwrites a capability profile under the given name.
// Re-registration silently replaces the previous profile and keeps the
// original registration position.
func (r *Router) Register(name string, profile CapabilityProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile.Name = name
	if _, ok := r.profiles[name]; !ok {
		r.order = append(r.order, name)
	}
	r.profiles[name] = profile
}

// Profile returns the registered profile for name.
func (r *Router) Profile(name string) (CapabilityProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	return p, ok
}

// Route returns the name of the backend that should serve the request.
//
// If preferred is non-empty, registered, supports the task kind, and (for
// chat) its context window holds the request, it is returned immediately
// without scoring: explicit preference short-circuits cost optimization.
// Otherwise the highest-scoring eligible backend wins, with ties resolving
// to the earlier-registered provider. Returns NoEligibleProviderError when
// nothing fits.
func (r *Router) Route(messages []llm.Message, preferred string, kind llm.TaskKind) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contextChars := llm.TotalContentChars(messages)

	if preferred != "" {
		if p, ok := r.profiles[preferred]; ok && r.eligible(p, kind, contextChars) {
			return preferred, nil
		}
	}

	best := ""
	bestScore := 0.0
	for _, name := range r.order {
		p := r.profiles[name]
		if !r.eligible(p, kind, contextChars) {
			continue
		}

		// Strictly-greater comparison preserves first-registered-wins.
		if score := score(p); best == "" || score > bestScore {
			best = name
			bestScore = score
		}
	}

	if best == "" {
		return "", NoEligibleProviderError{Kind: kind, ContextChars: contextChars}
	}

	return best, nil
}

// Rank returns every eligible backend for the request in descending score
// order, ties resolving to the earlier-registered provider. This is the
// preference list the fallback protocol walks after an invocation failure.
func (r *Router) Rank(messages []llm.Message, kind llm.TaskKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contextChars := llm.TotalContentChars(messages)

	type candidate struct {
		name  string
		score float64
	}

	var candidates []candidate
	for _, name := range r.order {
		p := r.profiles[name]
		if r.eligible(p, kind, contextChars) {
			candidates = append(candidates, candidate{name: name, score: score(p)})
		}
	}

	// Stable insertion sort over a short list; strictly-greater keeps
	// registration order among equals.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].score > candidates[j-1].score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

// AvailableProviders returns every registered backend supporting the given
// task kind, in registration order. Context budget is not considered; this is
// the candidate list the fallback protocol walks.
func (r *Router) AvailableProviders(kind llm.TaskKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, name := range r.order {
		if r.profiles[name].SupportsTask(kind) {
			names = append(names, name)
		}
	}
	return names
}

// eligible reports whether the profile can serve a request of the given kind
// and summed content length. Context fit applies to chat-like tasks only.
func (r *Router) eligible(p CapabilityProfile, kind llm.TaskKind, contextChars int) bool {
	if !p.SupportsTask(kind) {
		return false
	}
	if kind == llm.TaskChat || kind == llm.TaskStreaming {
		return p.MaxContextLength >= contextChars
	}
	return true
}

// score computes the preference score for an eligible profile.
func score(p CapabilityProfile) float64 {
	s := contextFitScore
	if p.CostPerToken == 0 {
		s += freeBackendBonus
	} else {
		s += (1 / p.CostPerToken) * inverseCostWeight
	}
	if p.SupportsFunctions {
		s += functionsBonus
	}
	if p.SupportsStreaming {
		s += streamingBonus
	}
	return s
}

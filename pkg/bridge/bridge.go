// Package bridge translates between free-form text and graph-resident
// structured knowledge, in both directions.
//
// Text becomes concept nodes plus co-occurrence relationship links; graph
// patterns become natural-language queries. Pattern propagation recursively
// spreads emergent relationship links outward from a seed to a bounded depth.
package bridge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/graph"
)

// Graph projection names.
const (
	conceptPrefix  = "concept:"
	relationPrefix = "relationship:"
	responsePrefix = "llm_response:"

	// DefaultRelationType is the relationship predicate used for
	// co-occurring concepts.
	DefaultRelationType = "related_to"

	// CoOccurrenceRelation is the predicate written by LLMToGraph for
	// concepts extracted from the same response.
	CoOccurrenceRelation = "co_occurs_with"

	// EmergentRelation is the predicate written by pattern propagation.
	EmergentRelation = "emergent_pattern"

	// responseNamePrefixLen bounds the response-node name to keep graph
	// names short; the node keys the response, it does not store it.
	responseNamePrefixLen = 50
)

// entityPattern matches capitalized tokens of three or more letters. This is
// a deliberately simple entity heuristic; the contract is text in,
// concept-node-set out.
var entityPattern = regexp.MustCompile(`\b[A-Z][a-z]{2,}\b`)

// Bridge performs neural-symbolic translation against a graph store.
type Bridge struct {
	store  graph.Store
	logger *zap.Logger
}

// Config holds construction parameters for a Bridge.
type Config struct {
	// Store is the graph memory store the bridge writes into.
	Store graph.Store

	// Logger is the zap logger. Defaults to a no-op logger.
	Logger *zap.Logger
}

// New creates a bridge over the given graph store.
func New(cfg Config) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Bridge{store: cfg.Store, logger: cfg.Logger}
}

// ExtractConcepts extracts entity candidates from text and writes one
// concept node per distinct surface form, in first-occurrence order.
func (b *Bridge) ExtractConcepts(ctx context.Context, text string) ([]graph.Ref, error) {
	var concepts []graph.Ref
	seen := make(map[string]struct{})

	for _, entity := range entityPattern.FindAllString(text, -1) {
		if _, ok := seen[entity]; ok {
			continue
		}
		seen[entity] = struct{}{}

		ref, err := b.store.AddNode(ctx, graph.NodeConcept, conceptPrefix+entity)
		if err != nil {
			return nil, fmt.Errorf("adding concept node for %q: %w", entity, err)
		}
		concepts = append(concepts, ref)
	}

	return concepts, nil
}

// CreateRelationships writes one relationship link per unordered pair of
// concepts. Quadratic in the concept count, which is acceptable for
// per-utterance extraction; callers batching large concept sets should
// reconsider.
func (b *Bridge) CreateRelationships(ctx context.Context, concepts []graph.Ref, relationType string) error {
	if relationType == "" {
		relationType = DefaultRelationType
	}
	if len(concepts) < 2 {
		return nil
	}

	predNode, err := b.store.AddNode(ctx, graph.NodePredicate, relationType)
	if err != nil {
		return fmt.Errorf("adding relation predicate: %w", err)
	}

	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			listLink, err := b.store.AddLink(ctx, graph.LinkList, concepts[i], concepts[j])
			if err != nil {
				return fmt.Errorf("adding relation pair: %w", err)
			}
			if _, err := b.store.AddLink(ctx, graph.LinkEvaluation, predNode, listLink); err != nil {
				return fmt.Errorf("adding relation link: %w", err)
			}
		}
	}
	return nil
}

// LLMToGraph converts a backend response into graph structure: a response
// node, a membership link per extracted concept, and co-occurrence
// relationships when two or more concepts were found. Returns the response
// node ref.
func (b *Bridge) LLMToGraph(ctx context.Context, responseText string) (graph.Ref, error) {
	concepts, err := b.ExtractConcepts(ctx, responseText)
	if err != nil {
		return graph.RefNil, err
	}

	name := responseText
	if len(name) > responseNamePrefixLen {
		// Back up to a rune boundary so the node name stays valid UTF-8.
		cut := responseNamePrefixLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}

	responseNode, err := b.store.AddNode(ctx, graph.NodeResponse, responsePrefix+name)
	if err != nil {
		return graph.RefNil, fmt.Errorf("adding response node: %w", err)
	}

	for _, concept := range concepts {
		if _, err := b.store.AddLink(ctx, graph.LinkMember, concept, responseNode); err != nil {
			return graph.RefNil, fmt.Errorf("linking concept to response: %w", err)
		}
	}

	if len(concepts) >= 2 {
		if err := b.CreateRelationships(ctx, concepts, CoOccurrenceRelation); err != nil {
			return graph.RefNil, err
		}
	}

	b.logger.Debug("response mapped to graph",
		zap.Int("concepts", len(concepts)),
	)
	return responseNode, nil
}

// GraphToQuery renders a natural-language question from a pattern node's
// name. A best-effort, lossy inverse of extraction.
func (b *Bridge) GraphToQuery(ctx context.Context, patternNode graph.Ref) (string, error) {
	_, name, err := b.store.NodeName(ctx, patternNode)
	if err != nil {
		return "", fmt.Errorf("reading pattern node: %w", err)
	}

	switch {
	case strings.HasPrefix(name, conceptPrefix):
		return "Tell me about " + strings.TrimPrefix(name, conceptPrefix), nil
	case strings.HasPrefix(name, relationPrefix):
		return "Explain the relationship " + strings.TrimPrefix(name, relationPrefix), nil
	default:
		return "Analyze this concept: " + name, nil
	}
}

// Process is the composite text-to-knowledge operation: it extracts concepts
// from the input, synthesizes a textual description of what was found, maps
// that description into the graph, and returns the description.
func (b *Bridge) Process(ctx context.Context, input string) (string, error) {
	concepts, err := b.ExtractConcepts(ctx, input)
	if err != nil {
		return "", err
	}

	description := fmt.Sprintf("Neural-symbolic analysis of: %s\nExtracted %d concepts", input, len(concepts))

	if _, err := b.LLMToGraph(ctx, description); err != nil {
		return "", err
	}
	return description, nil
}

// InferRelationship names the ordering between two entities by their first
// occurrence in the context text. An entity absent from the context counts
// as occurring after any present one; "unrelated" means neither appears.
func (b *Bridge) InferRelationship(entity1, entity2, context string) string {
	first := strings.Index(context, entity1)
	second := strings.Index(context, entity2)

	switch {
	case first < 0 && second < 0:
		return "unrelated"
	case second < 0:
		return "precedes"
	case first < 0:
		return "follows"
	case first < second:
		return "precedes"
	default:
		return "follows"
	}
}

// PropagatePatterns recursively creates emergent relationship links outward
// from seed. Every node reachable via one incident link of seed (excluding
// seed itself) gains an emergent link to seed, after which propagation
// recurses on the newly created link with depth-1. Termination is guaranteed
// solely by the depth bound; revisiting a neighborhood at a different depth
// is expected, and duplicate links are absorbed by the store's create-or-get
// identity dedup.
func (b *Bridge) PropagatePatterns(ctx context.Context, seed graph.Ref, depth int) error {
	if depth <= 0 {
		return nil
	}

	incident, err := b.store.GetIncident(ctx, seed)
	if err != nil {
		return fmt.Errorf("reading incident links: %w", err)
	}

	var related []graph.Ref
	for _, link := range incident {
		outgoing, err := b.store.GetOutgoing(ctx, link)
		if err != nil {
			return fmt.Errorf("reading link members: %w", err)
		}
		for _, ref := range outgoing {
			if ref != seed {
				related = append(related, ref)
			}
		}
	}

	if len(related) == 0 {
		return nil
	}

	predNode, err := b.store.AddNode(ctx, graph.NodePredicate, EmergentRelation)
	if err != nil {
		return fmt.Errorf("adding emergent predicate: %w", err)
	}

	for _, ref := range related {
		listLink, err := b.store.AddLink(ctx, graph.LinkList, seed, ref)
		if err != nil {
			return fmt.Errorf("adding emergent pair: %w", err)
		}

		emergent, err := b.store.AddLink(ctx, graph.LinkEvaluation, predNode, listLink)
		if err != nil {
			return fmt.Errorf("adding emergent link: %w", err)
		}

		if err := b.PropagatePatterns(ctx, emergent, depth-1); err != nil {
			return err
		}
	}
	return nil
}

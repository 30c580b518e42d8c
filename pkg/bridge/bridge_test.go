package bridge_test

import (
	"context"
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meshmindco/meshmind/pkg/bridge"
	"github.com/meshmindco/meshmind/pkg/graph"
	"github.com/meshmindco/meshmind/pkg/graph/memstore"
)

var _ = Describe("Bridge", func() {
	var (
		ctx   context.Context
		store *memstore.Store
		b     *bridge.Bridge
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memstore.New()
		b = bridge.New(bridge.Config{Store: store})
	})

	Describe("ExtractConcepts", func() {
		It("extracts capitalized entities in first-occurrence order", func() {
			concepts, err := b.ExtractConcepts(ctx, "Einstein met Bohr in Brussels")
			Expect(err).NotTo(HaveOccurred())
			Expect(concepts).To(HaveLen(3))

			_, name, err := store.NodeName(ctx, concepts[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("concept:Einstein"))
		})

		It("deduplicates repeated entities", func() {
			concepts, err := b.ExtractConcepts(ctx, "Tesla praised Tesla coils built by Tesla")
			Expect(err).NotTo(HaveOccurred())
			Expect(concepts).To(HaveLen(1))
		})

		It("ignores lowercase and short tokens", func() {
			concepts, err := b.ExtractConcepts(ctx, "the cat sat on a mat by Mr Jo")
			Expect(err).NotTo(HaveOccurred())
			Expect(concepts).To(BeEmpty())
		})

		It("returns nothing for empty text", func() {
			concepts, err := b.ExtractConcepts(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(concepts).To(BeEmpty())
		})
	})

	Describe("CreateRelationships", func() {
		It("writes a link per concept pair", func() {
			concepts, err := b.ExtractConcepts(ctx, "Newton and Leibniz and Euler")
			Expect(err).NotTo(HaveOccurred())
			Expect(concepts).To(HaveLen(3))

			Expect(b.CreateRelationships(ctx, concepts, "")).To(Succeed())

			// 3 concepts give 3 unordered pairs, each wrapped in an
			// evaluation link on the shared predicate node.
			pred, err := store.FindNode(ctx, graph.NodePredicate, bridge.DefaultRelationType)
			Expect(err).NotTo(HaveOccurred())
			Expect(pred).NotTo(Equal(graph.RefNil))

			incident, err := store.GetIncident(ctx, pred)
			Expect(err).NotTo(HaveOccurred())
			Expect(incident).To(HaveLen(3))
		})

		It("is a no-op for fewer than two concepts", func() {
			concepts, err := b.ExtractConcepts(ctx, "Einstein")
			Expect(err).NotTo(HaveOccurred())

			Expect(b.CreateRelationships(ctx, concepts, "")).To(Succeed())

			pred, err := store.FindNode(ctx, graph.NodePredicate, bridge.DefaultRelationType)
			Expect(err).NotTo(HaveOccurred())
			Expect(pred).To(Equal(graph.RefNil))
		})
	})

	Describe("LLMToGraph", func() {
		It("creates a response node with concept membership", func() {
			responseNode, err := b.LLMToGraph(ctx, "Einstein developed Relativity")
			Expect(err).NotTo(HaveOccurred())
			Expect(responseNode).NotTo(Equal(graph.RefNil))

			incident, err := store.GetIncident(ctx, responseNode)
			Expect(err).NotTo(HaveOccurred())
			// One membership link per extracted concept.
			Expect(incident).To(HaveLen(2))
		})

		It("records co-occurrence when two or more concepts appear", func() {
			_, err := b.LLMToGraph(ctx, "Einstein debated Bohr")
			Expect(err).NotTo(HaveOccurred())

			pred, err := store.FindNode(ctx, graph.NodePredicate, bridge.CoOccurrenceRelation)
			Expect(err).NotTo(HaveOccurred())
			Expect(pred).NotTo(Equal(graph.RefNil))
		})

		It("truncates long response names on a rune boundary", func() {
			responseNode, err := b.LLMToGraph(ctx, strings.Repeat("日", 20))
			Expect(err).NotTo(HaveOccurred())

			_, name, err := store.NodeName(ctx, responseNode)
			Expect(err).NotTo(HaveOccurred())
			Expect(utf8.ValidString(name)).To(BeTrue())
			Expect(name).To(Equal("llm_response:" + strings.Repeat("日", 16)))
		})

		It("skips co-occurrence for a single concept", func() {
			_, err := b.LLMToGraph(ctx, "Einstein was born in 1879")
			Expect(err).NotTo(HaveOccurred())

			pred, err := store.FindNode(ctx, graph.NodePredicate, bridge.CoOccurrenceRelation)
			Expect(err).NotTo(HaveOccurred())
			Expect(pred).To(Equal(graph.RefNil))
		})
	})

	Describe("GraphToQuery", func() {
		It("renders a concept node as a tell-me-about question", func() {
			concepts, err := b.ExtractConcepts(ctx, "Gravity")
			Expect(err).NotTo(HaveOccurred())

			query, err := b.GraphToQuery(ctx, concepts[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(Equal("Tell me about Gravity"))
		})

		It("renders other nodes as analyze prompts", func() {
			ref, err := store.AddNode(ctx, graph.NodePattern, "wave particle duality")
			Expect(err).NotTo(HaveOccurred())

			query, err := b.GraphToQuery(ctx, ref)
			Expect(err).NotTo(HaveOccurred())
			Expect(query).To(Equal("Analyze this concept: wave particle duality"))
		})
	})

	Describe("Process", func() {
		It("returns a description naming the extraction count", func() {
			description, err := b.Process(ctx, "Darwin sailed to Galapagos")
			Expect(err).NotTo(HaveOccurred())
			Expect(description).To(ContainSubstring("Extracted 2 concepts"))
		})
	})

	Describe("InferRelationship", func() {
		It("orders entities by first occurrence", func() {
			text := "Marie Curie studied under Becquerel"
			Expect(b.InferRelationship("Curie", "Becquerel", text)).To(Equal("precedes"))
			Expect(b.InferRelationship("Becquerel", "Curie", text)).To(Equal("follows"))
		})

		It("treats an absent entity as occurring last", func() {
			text := "Marie Curie studied radioactivity"
			Expect(b.InferRelationship("Curie", "Becquerel", text)).To(Equal("precedes"))
			Expect(b.InferRelationship("Becquerel", "Curie", text)).To(Equal("follows"))
		})

		It("reports entities absent from the context as unrelated", func() {
			Expect(b.InferRelationship("Curie", "Becquerel", "nothing here")).To(Equal("unrelated"))
		})
	})

	Describe("PropagatePatterns", func() {
		var seed graph.Ref

		BeforeEach(func() {
			concepts, err := b.ExtractConcepts(ctx, "Einstein and Bohr")
			Expect(err).NotTo(HaveOccurred())
			Expect(b.CreateRelationships(ctx, concepts, "")).To(Succeed())
			seed = concepts[0]
		})

		It("writes nothing at depth zero", func() {
			before, err := store.GetIncident(ctx, seed)
			Expect(err).NotTo(HaveOccurred())

			Expect(b.PropagatePatterns(ctx, seed, 0)).To(Succeed())

			after, err := store.GetIncident(ctx, seed)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("creates emergent links from the seed's neighborhood", func() {
			Expect(b.PropagatePatterns(ctx, seed, 1)).To(Succeed())

			pred, err := store.FindNode(ctx, graph.NodePredicate, bridge.EmergentRelation)
			Expect(err).NotTo(HaveOccurred())
			Expect(pred).NotTo(Equal(graph.RefNil))

			incident, err := store.GetIncident(ctx, pred)
			Expect(err).NotTo(HaveOccurred())
			Expect(incident).NotTo(BeEmpty())
		})

		It("terminates at the depth bound", func() {
			Expect(b.PropagatePatterns(ctx, seed, 3)).To(Succeed())
		})

		It("is idempotent for a fixed seed and depth", func() {
			Expect(b.PropagatePatterns(ctx, seed, 1)).To(Succeed())

			pred, err := store.FindNode(ctx, graph.NodePredicate, bridge.EmergentRelation)
			Expect(err).NotTo(HaveOccurred())
			first, err := store.GetIncident(ctx, pred)
			Expect(err).NotTo(HaveOccurred())

			Expect(b.PropagatePatterns(ctx, seed, 1)).To(Succeed())
			second, err := store.GetIncident(ctx, pred)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("is a no-op for an isolated seed", func() {
			isolated, err := store.AddNode(ctx, graph.NodeConcept, "concept:Alone")
			Expect(err).NotTo(HaveOccurred())

			Expect(b.PropagatePatterns(ctx, isolated, 2)).To(Succeed())

			incident, err := store.GetIncident(ctx, isolated)
			Expect(err).NotTo(HaveOccurred())
			Expect(incident).To(BeEmpty())
		})
	})
})

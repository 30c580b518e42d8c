package memstore_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meshmindco/meshmind/pkg/graph"
	"github.com/meshmindco/meshmind/pkg/graph/memstore"
)

var _ = Describe("Store", func() {
	var (
		s   *memstore.Store
		ctx context.Context
	)

	BeforeEach(func() {
		s = memstore.New()
		ctx = context.Background()
	})

	Describe("AddNode", func() {
		It("returns the same ref for an identical node", func() {
			first, err := s.AddNode(ctx, graph.NodeConcept, "Einstein")
			Expect(err).NotTo(HaveOccurred())

			second, err := s.AddNode(ctx, graph.NodeConcept, "Einstein")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("distinguishes nodes by type", func() {
			concept, err := s.AddNode(ctx, graph.NodeConcept, "alpha")
			Expect(err).NotTo(HaveOccurred())

			predicate, err := s.AddNode(ctx, graph.NodePredicate, "alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(predicate).NotTo(Equal(concept))
		})
	})

	Describe("AddLink", func() {
		It("deduplicates identical links", func() {
			a, _ := s.AddNode(ctx, graph.NodeConcept, "a")
			b, _ := s.AddNode(ctx, graph.NodeConcept, "b")

			first, err := s.AddLink(ctx, graph.LinkList, a, b)
			Expect(err).NotTo(HaveOccurred())

			second, err := s.AddLink(ctx, graph.LinkList, a, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			// The duplicate write adds no second incident entry.
			incident, err := s.GetIncident(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(incident).To(HaveLen(1))
		})

		It("treats endpoint order as significant", func() {
			a, _ := s.AddNode(ctx, graph.NodeConcept, "a")
			b, _ := s.AddNode(ctx, graph.NodeConcept, "b")

			ab, err := s.AddLink(ctx, graph.LinkList, a, b)
			Expect(err).NotTo(HaveOccurred())

			ba, err := s.AddLink(ctx, graph.LinkList, b, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(ba).NotTo(Equal(ab))
		})

		It("links over other links", func() {
			a, _ := s.AddNode(ctx, graph.NodeConcept, "a")
			b, _ := s.AddNode(ctx, graph.NodeConcept, "b")
			pred, _ := s.AddNode(ctx, graph.NodePredicate, "related_to")

			list, err := s.AddLink(ctx, graph.LinkList, a, b)
			Expect(err).NotTo(HaveOccurred())

			eval, err := s.AddLink(ctx, graph.LinkEvaluation, pred, list)
			Expect(err).NotTo(HaveOccurred())

			outgoing, err := s.GetOutgoing(ctx, eval)
			Expect(err).NotTo(HaveOccurred())
			Expect(outgoing).To(Equal([]graph.Ref{pred, list}))
		})
	})

	Describe("GetIncident", func() {
		It("returns links in creation order", func() {
			a, _ := s.AddNode(ctx, graph.NodeConcept, "a")
			b, _ := s.AddNode(ctx, graph.NodeConcept, "b")
			c, _ := s.AddNode(ctx, graph.NodeConcept, "c")

			first, _ := s.AddLink(ctx, graph.LinkList, a, b)
			second, _ := s.AddLink(ctx, graph.LinkList, a, c)

			incident, err := s.GetIncident(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(incident).To(Equal([]graph.Ref{first, second}))
		})

		It("is empty for an unlinked node", func() {
			a, _ := s.AddNode(ctx, graph.NodeConcept, "a")

			incident, err := s.GetIncident(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(incident).To(BeEmpty())
		})
	})

	Describe("FindNode", func() {
		It("finds an existing node", func() {
			created, _ := s.AddNode(ctx, graph.NodeSession, "session:abc")

			found, err := s.FindNode(ctx, graph.NodeSession, "session:abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(Equal(created))
		})

		It("returns RefNil without error for a missing node", func() {
			found, err := s.FindNode(ctx, graph.NodeSession, "session:missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(Equal(graph.RefNil))
		})
	})

	Describe("NodeName", func() {
		It("returns type and name for nodes", func() {
			ref, _ := s.AddNode(ctx, graph.NodeConcept, "Einstein")

			nodeType, name, err := s.NodeName(ctx, ref)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodeType).To(Equal(graph.NodeConcept))
			Expect(name).To(Equal("Einstein"))
		})

		It("returns the link type for links", func() {
			a, _ := s.AddNode(ctx, graph.NodeConcept, "a")
			link, _ := s.AddLink(ctx, graph.LinkMember, a)

			linkType, name, err := s.NodeName(ctx, link)
			Expect(err).NotTo(HaveOccurred())
			Expect(linkType).To(Equal(graph.LinkMember))
			Expect(name).To(BeEmpty())
		})

		It("fails for unknown refs", func() {
			_, _, err := s.NodeName(ctx, graph.Ref("bogus"))

			var notFound graph.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(notFound))
		})
	})

	Describe("Remove", func() {
		It("removes a link and its incident entries", func() {
			a, _ := s.AddNode(ctx, graph.NodeConcept, "a")
			b, _ := s.AddNode(ctx, graph.NodeConcept, "b")
			link, _ := s.AddLink(ctx, graph.LinkList, a, b)

			Expect(s.Remove(ctx, link)).To(Succeed())

			incident, err := s.GetIncident(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(incident).To(BeEmpty())
		})

		It("fails for unknown refs", func() {
			err := s.Remove(ctx, graph.Ref("bogus"))

			var notFound graph.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(notFound))
		})
	})
})

package backend_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meshmindco/meshmind/pkg/llm/backend"
)

var _ = Describe("New", func() {
	It("constructs a client for each supported provider", func() {
		for _, provider := range backend.SupportedProviders() {
			client, err := backend.New(backend.ClientConfig{Provider: provider, Model: "m"})
			Expect(err).NotTo(HaveOccurred(), "provider %s", provider)
			Expect(client.Name()).To(Equal(provider))
			Expect(client.Close()).To(Succeed())
		}
	})

	It("rejects an unknown provider with a construction error", func() {
		_, err := backend.New(backend.ClientConfig{Provider: "grok"})

		var consErr backend.ConstructionError
		Expect(errors.As(err, &consErr)).To(BeTrue())
		Expect(consErr.Provider).To(Equal("grok"))
		Expect(consErr.Error()).To(ContainSubstring("unknown provider"))
	})

	It("rejects an empty provider name", func() {
		_, err := backend.New(backend.ClientConfig{})

		var consErr backend.ConstructionError
		Expect(errors.As(err, &consErr)).To(BeTrue())
	})
})

var _ = Describe("SupportedProviders", func() {
	It("lists the three built-in providers", func() {
		Expect(backend.SupportedProviders()).To(Equal([]string{
			backend.OpenAI, backend.Anthropic, backend.Ollama,
		}))
	})
})

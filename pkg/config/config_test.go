package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meshmindco/meshmind/pkg/config"
)

var _ = Describe("Config", func() {
	Describe("ParseTOML", func() {
		It("parses sections and applies defaults to unset fields", func() {
			data := []byte(`
[graph]
backend = "sqlite"
sqlite_path = "/tmp/test.db"

[providers.openai]
model = "gpt-4o"
api_key = "sk-test"
cost_per_token = 0.00003
max_context_length = 128000
streaming = true
functions = true
`)
			cfg, err := config.ParseTOML(data)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Graph.Backend).To(Equal("sqlite"))
			Expect(cfg.Graph.SQLitePath).To(Equal("/tmp/test.db"))

			// Unset sections fall back to defaults.
			Expect(cfg.Session.ActiveWindowSeconds).To(Equal(3600))
			Expect(cfg.EventStream.Provider).To(Equal("none"))

			openai, ok := cfg.Providers["openai"]
			Expect(ok).To(BeTrue())
			Expect(openai.Model).To(Equal("gpt-4o"))
			Expect(openai.MaxContextLength).To(Equal(128000))
			Expect(openai.Functions).To(BeTrue())
		})

		It("rejects malformed TOML", func() {
			_, err := config.ParseTOML([]byte("graph = ["))
			Expect(err).To(HaveOccurred())
		})

		It("keeps explicit provider sections instead of defaults", func() {
			cfg, err := config.ParseTOML([]byte("[providers.anthropic]\nmodel = \"claude\"\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Providers).To(HaveLen(1))
			Expect(cfg.Providers).To(HaveKey("anthropic"))
		})
	})

	Describe("NewDefaultConfig", func() {
		It("ships a local provider with streaming and embeddings", func() {
			cfg := config.NewDefaultConfig()

			ollama, ok := cfg.Providers["ollama"]
			Expect(ok).To(BeTrue())
			Expect(ollama.Streaming).To(BeTrue())
			Expect(ollama.Embeddings).To(BeTrue())
			Expect(ollama.CostPerToken).To(BeZero())
		})
	})

	Describe("Save and Load", func() {
		var path string

		BeforeEach(func() {
			dir, err := os.MkdirTemp("", "meshmind-config")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { _ = os.RemoveAll(dir) })
			path = filepath.Join(dir, "config.toml")
		})

		It("round-trips the configuration", func() {
			cfg := config.NewDefaultConfig()
			cfg.Graph.Backend = "sqlite"
			cfg.EventStream.Provider = "kafka"
			cfg.EventStream.Brokers = []string{"localhost:9092"}

			Expect(config.Save(cfg, path)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Graph.Backend).To(Equal("sqlite"))
			Expect(loaded.EventStream.Provider).To(Equal("kafka"))
			Expect(loaded.EventStream.Brokers).To(Equal([]string{"localhost:9092"}))
		})

		It("creates the parent directory on save", func() {
			nested := filepath.Join(filepath.Dir(path), "sub", "config.toml")
			Expect(config.Save(config.NewDefaultConfig(), nested)).To(Succeed())

			_, err := os.Stat(nested)
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns defaults for a missing file", func() {
			cfg, err := config.Load(filepath.Join(filepath.Dir(path), "absent.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Graph.Backend).To(Equal("memory"))
		})

		It("rejects a nil config", func() {
			Expect(config.Save(nil, path)).NotTo(Succeed())
		})

		It("honors environment overrides on load", func() {
			Expect(os.Setenv("MESHMIND_GRAPH_BACKEND", "sqlite")).To(Succeed())
			DeferCleanup(func() { _ = os.Unsetenv("MESHMIND_GRAPH_BACKEND") })

			cfg, err := config.Load(filepath.Join(filepath.Dir(path), "absent.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Graph.Backend).To(Equal("sqlite"))
		})

		It("prefers environment overrides to file values", func() {
			saved := config.NewDefaultConfig()
			saved.EventStream.Topic = "meshmind-file"
			Expect(config.Save(saved, path)).To(Succeed())

			Expect(os.Setenv("MESHMIND_EVENTSTREAM_TOPIC", "meshmind-env")).To(Succeed())
			DeferCleanup(func() { _ = os.Unsetenv("MESHMIND_EVENTSTREAM_TOPIC") })

			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.EventStream.Topic).To(Equal("meshmind-env"))
		})
	})

	Describe("InitViper", func() {
		It("applies defaults when no file exists", func() {
			v, err := config.InitViper(filepath.Join(os.TempDir(), "meshmind-none", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("graph.backend")).To(Equal("memory"))
			Expect(v.GetInt("session.active_window_seconds")).To(Equal(3600))
		})

		It("lets the environment override defaults", func() {
			Expect(os.Setenv("MESHMIND_GRAPH_BACKEND", "postgres")).To(Succeed())
			DeferCleanup(func() { _ = os.Unsetenv("MESHMIND_GRAPH_BACKEND") })

			v, err := config.InitViper(filepath.Join(os.TempDir(), "meshmind-none", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("graph.backend")).To(Equal("postgres"))
		})
	})
})

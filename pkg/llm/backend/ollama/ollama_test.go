package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meshmindco/meshmind/pkg/llm"
	"github.com/meshmindco/meshmind/pkg/llm/backend/ollama"
)

// recordingServer captures the last request body and serves a canned handler.
type recordingServer struct {
	mu       sync.Mutex
	lastPath string
	lastBody []byte
	handler  http.HandlerFunc
	srv      *httptest.Server
}

func newRecordingServer(handler http.HandlerFunc) *recordingServer {
	rs := &recordingServer{handler: handler}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.lastPath = r.URL.Path
		rs.lastBody = body
		rs.mu.Unlock()
		rs.handler(w, r)
	}))
	return rs
}

func (rs *recordingServer) request() (string, []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastPath, rs.lastBody
}

var _ = Describe("Client", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Complete", func() {
		It("posts a non-streaming chat request and returns the reply", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"message": map[string]string{"role": "assistant", "content": "hello there"},
					"done":    true,
				})
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{Model: "llama3", BaseURL: rs.srv.URL})
			reply, err := client.Complete(ctx, []llm.Message{llm.NewMessage(llm.RoleUser, "hi")})

			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal("hello there"))

			path, body := rs.request()
			Expect(path).To(Equal("/api/chat"))

			var req struct {
				Model    string        `json:"model"`
				Messages []llm.Message `json:"messages"`
				Stream   bool          `json:"stream"`
			}
			Expect(json.Unmarshal(body, &req)).To(Succeed())
			Expect(req.Model).To(Equal("llama3"))
			Expect(req.Stream).To(BeFalse())
			Expect(req.Messages).To(HaveLen(1))
			Expect(req.Messages[0].Content).To(Equal("hi"))
		})

		It("falls back to the default model when unset", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"message": map[string]string{"role": "assistant", "content": "ok"},
					"done":    true,
				})
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{BaseURL: rs.srv.URL})
			_, err := client.Complete(ctx, []llm.Message{llm.NewMessage(llm.RoleUser, "hi")})
			Expect(err).NotTo(HaveOccurred())

			_, body := rs.request()
			var req struct {
				Model string `json:"model"`
			}
			Expect(json.Unmarshal(body, &req)).To(Succeed())
			Expect(req.Model).To(Equal(ollama.DefaultModel))
		})

		It("wraps a non-200 status in an invocation error", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{BaseURL: rs.srv.URL})
			_, err := client.Complete(ctx, []llm.Message{llm.NewMessage(llm.RoleUser, "hi")})

			var invErr llm.InvocationError
			Expect(errors.As(err, &invErr)).To(BeTrue())
			Expect(invErr.Provider).To(Equal("ollama"))
			Expect(invErr.Error()).To(ContainSubstring("404"))
		})

		It("wraps an API-level error field in an invocation error", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "out of memory"})
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{BaseURL: rs.srv.URL})
			_, err := client.Complete(ctx, []llm.Message{llm.NewMessage(llm.RoleUser, "hi")})

			var invErr llm.InvocationError
			Expect(errors.As(err, &invErr)).To(BeTrue())
			Expect(invErr.Error()).To(ContainSubstring("out of memory"))
		})
	})

	Describe("CompleteStreaming", func() {
		It("delivers each chunk's content in order and stops at done", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				chunks := []string{"Hel", "lo", " world"}
				for _, c := range chunks {
					fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", c)
				}
				fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{BaseURL: rs.srv.URL})

			var got []string
			err := client.CompleteStreaming(ctx, []llm.Message{llm.NewMessage(llm.RoleUser, "hi")}, func(chunk string) {
				got = append(got, chunk)
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]string{"Hel", "lo", " world"}))

			_, body := rs.request()
			var req struct {
				Stream bool `json:"stream"`
			}
			Expect(json.Unmarshal(body, &req)).To(Succeed())
			Expect(req.Stream).To(BeTrue())
		})

		It("surfaces a mid-stream API error", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintln(w, `{"message":{"role":"assistant","content":"par"},"done":false}`)
				fmt.Fprintln(w, `{"error":"connection reset"}`)
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{BaseURL: rs.srv.URL})

			var got []string
			err := client.CompleteStreaming(ctx, []llm.Message{llm.NewMessage(llm.RoleUser, "hi")}, func(chunk string) {
				got = append(got, chunk)
			})

			var invErr llm.InvocationError
			Expect(errors.As(err, &invErr)).To(BeTrue())
			Expect(invErr.Error()).To(ContainSubstring("connection reset"))
			Expect(got).To(Equal([]string{"par"}))
		})
	})

	Describe("Embed", func() {
		It("posts to the embed endpoint and returns the first vector", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"embeddings": [][]float32{{0.1, 0.2, 0.3}},
				})
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{BaseURL: rs.srv.URL})
			vec, err := client.Embed(ctx, "graph memory")

			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float32{0.1, 0.2, 0.3}))

			path, body := rs.request()
			Expect(path).To(Equal("/api/embed"))

			var req struct {
				Model string `json:"model"`
				Input string `json:"input"`
			}
			Expect(json.Unmarshal(body, &req)).To(Succeed())
			Expect(req.Model).To(Equal(ollama.DefaultEmbeddingModel))
			Expect(req.Input).To(Equal("graph memory"))
		})

		It("errors when the response carries no embeddings", func() {
			rs := newRecordingServer(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
			})
			DeferCleanup(rs.srv.Close)

			client := ollama.New(ollama.Config{BaseURL: rs.srv.URL})
			_, err := client.Embed(ctx, "anything")

			var invErr llm.InvocationError
			Expect(errors.As(err, &invErr)).To(BeTrue())
			Expect(invErr.Error()).To(ContainSubstring("no embeddings"))
		})
	})

	Describe("Name", func() {
		It("reports the canonical provider name", func() {
			Expect(ollama.New(ollama.Config{}).Name()).To(Equal("ollama"))
		})
	})
})

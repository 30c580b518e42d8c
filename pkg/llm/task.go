package llm

// TaskKind identifies the kind of work a request asks a backend to perform.
// Routing eligibility is decided per task kind against a backend's
// capability profile.
type TaskKind string

const (
	// TaskChat is a standard chat completion request.
	TaskChat TaskKind = "chat"

	// TaskEmbedding is a text embedding request.
	TaskEmbedding TaskKind = "embedding"

	// TaskStreaming is a chat completion delivered incrementally via a
	// chunk callback.
	TaskStreaming TaskKind = "streaming"
)

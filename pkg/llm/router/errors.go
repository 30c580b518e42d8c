package router

import (
	"fmt"

	"github.com/meshmindco/meshmind/pkg/llm"
)

// NoEligibleProviderError is returned by Route when no registered backend
// supports the requested task kind within the request's context budget.
type NoEligibleProviderError struct {
	Kind         llm.TaskKind
	ContextChars int
}

func (e NoEligibleProviderError) Error() string {
	return fmt.Sprintf("no eligible provider for task %q (context %d chars)", string(e.Kind), e.ContextChars)
}

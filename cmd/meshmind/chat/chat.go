// Package chatcmder provides the chat command for interactive LLM chat
// backed by the graph memory.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/config"
	"github.com/meshmindco/meshmind/pkg/engine"
	"github.com/meshmindco/meshmind/pkg/logger"
	"github.com/meshmindco/meshmind/pkg/worker"
)

type chatCommander struct {
	session  string
	provider string
	model    string
	debug    bool

	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive chat session.

Messages are routed to the best eligible provider by capability and cost,
with automatic fallback when a provider fails. The conversation is
synchronized into the graph memory in the background, and resuming the same
session name later reattaches the prior conversation.

Examples:
  meshmind chat
  meshmind chat --session research --provider openai --model gpt-4o`

const chatShortDesc string = "Interactive LLM chat with graph-backed sessions"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}

			return cmder.run(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&cmder.session, "session", "s", "default", "Session name to create or resume")
	cmd.Flags().StringVarP(&cmder.provider, "provider", "p", "", "Preferred provider (defaults to the first configured)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name override")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if c.provider == "" {
		c.provider = firstProvider(cfg)
	}
	if c.model == "" {
		c.model = cfg.Providers[c.provider].Model
	}

	eng, err := engine.New(ctx, cfg, c.logger)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer eng.Close()

	sessionID, err := eng.Manager.ResumeSession(ctx, c.session, c.provider, c.model)
	if err != nil {
		return fmt.Errorf("resuming session %q: %w", c.session, err)
	}

	fmt.Printf("session %s (%s/%s), ctrl-d to exit\n", c.session, c.provider, c.model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		fmt.Print("assistant> ")
		reply := ""
		err := eng.Manager.CompleteStreaming(ctx, sessionID, input, func(chunk string) {
			reply += chunk
			fmt.Print(chunk)
		})
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		eng.Pool.Enqueue(worker.Job{
			SessionID:   sessionID,
			AnalyzeText: reply,
		})
	}

	return scanner.Err()
}

// firstProvider picks the alphabetically first configured provider so the
// default is stable across runs.
func firstProvider(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

package llm

import (
	"context"
	"fmt"

	"github.com/vinayprograms/agentcore/agent"
	"github.com/vinayprograms/agentcore/errors"
	"github.com/vinayprograms/agentcore/task"
)

// ChatTaskType is the task type served by NewChatHandler.
const ChatTaskType = "llm.chat"

// ChatSchema describes llm.chat parameters.
func ChatSchema() *task.Schema {
	return task.NewSchema(
		task.Field{Name: "prompt", Type: task.TypeString, Required: true, Description: "user message"},
		task.Field{Name: "system", Type: task.TypeString, Description: "system instruction"},
		task.Field{Name: "max_tokens", Type: task.TypeInt, Description: "overrides the configured limit"},
	)
}

// ChatResult is the result of an llm.chat task.
type ChatResult struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	StopReason   string `json:"stop_reason"`
}

// NewChatHandler returns a handler that sends one chat request per task.
func NewChatHandler(p Provider) agent.Handler {
	return agent.HandlerFunc(func(ctx context.Context, req agent.Request) (any, error) {
		prompt, _ := req.Params.String("prompt")
		if prompt == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "prompt must not be empty", errors.WithTaskID(req.TaskID))
		}

		chat := ChatRequest{}
		if system, ok := req.Params.String("system"); ok && system != "" {
			chat.Messages = append(chat.Messages, Message{Role: "system", Content: system})
		}
		chat.Messages = append(chat.Messages, Message{Role: "user", Content: prompt})
		if n, ok := req.Params.Int("max_tokens"); ok {
			if n <= 0 {
				return nil, errors.New(errors.ErrCodeInvalidInput,
					fmt.Sprintf("max_tokens must be positive, got %d", n), errors.WithTaskID(req.TaskID))
			}
			chat.MaxTokens = n
		}

		resp, err := p.Chat(ctx, chat)
		if err != nil {
			return nil, err
		}
		return ChatResult{
			Content:      resp.Content,
			Model:        resp.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			StopReason:   resp.StopReason,
		}, nil
	})
}

// RegisterChat adds the llm.chat handler to reg.
func RegisterChat(reg *agent.Registry, p Provider) error {
	return reg.Register(ChatTaskType, NewChatHandler(p), ChatSchema())
}

package llm

import (
	"context"

	"tdr-agent/internal/logger"
)

// loggedClient records every call made through the wrapped client
type loggedClient struct {
	next   ChatClient
	logger *logger.Logger
}

// WithLogging wraps c so each call is passed to logger
func WithLogging(c ChatClient, logger *logger.Logger) ChatClient {
	return &loggedClient{next: c, logger: logger}
}

func (c *loggedClient) Complete(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system": req.System,
		"user":   req.User,
	}
	reply, err := c.next.Complete(ctx, req)
	if err != nil {
		c.logger.LogLLMInteraction(req.Operation, input, nil, err)
		return "", err
	}
	c.logger.LogLLMInteraction(req.Operation, input, reply, nil)
	return reply, nil
}

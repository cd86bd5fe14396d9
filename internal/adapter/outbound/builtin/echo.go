// Package builtin holds tools served without any upstream.
package builtin

import (
	"context"
	"fmt"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

// EchoTool describes the echo tool: {text: string} in, the same object out.
var EchoTool = domain.Tool{
	Name:        "echo",
	Description: "Returns its input unchanged.",
	InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
		"text": domain.StringProp("Text to echo back"),
	}, "text"),
}

// Echo is the handler of EchoTool.
func Echo(_ context.Context, args map[string]interface{}) (interface{}, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text must be a string, got %T", args["text"])
	}
	return map[string]interface{}{"text": text}, nil
}

// Register adds every built-in tool to repo.
func Register(ctx context.Context, repo usecase.ToolRepository) error {
	return repo.Register(ctx, EchoTool, Echo)
}

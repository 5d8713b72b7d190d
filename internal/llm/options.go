package llm

import (
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func resolveOptions(modelName string, maxTokens *int, temperature *float32, opts []model.Option) *model.Options {
	name := modelName
	return model.GetCommonOptions(&model.Options{
		Model:       &name,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}, opts...)
}

// splitSystem separates system instructions from the dialogue, in order.
func splitSystem(input []*schema.Message) ([]string, []*schema.Message) {
	var system []string
	dialogue := make([]*schema.Message, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		if msg.Role == schema.System {
			if content := strings.TrimSpace(msg.Content); content != "" {
				system = append(system, content)
			}
			continue
		}
		dialogue = append(dialogue, msg)
	}
	return system, dialogue
}

package evaluate

import (
	"strings"

	"note-curator/internal/domain/entity"
	"note-curator/internal/infra/evaluator"
	"note-curator/internal/pkg/config"
)

// buildMessages expands the configured prompt pair into a typed message
// list. Template expansion is literal and pure: each placeholder is replaced
// with the corresponding article field, nothing is escaped or interpreted.
func buildMessages(prompt config.PromptPair, article *entity.Article, content string) []evaluator.Message {
	replacer := strings.NewReplacer(
		"{article_id}", article.ID,
		"{title}", article.Title,
		"{author}", article.Author,
		"{category}", article.Category,
		"{content_preview}", content,
	)

	return []evaluator.Message{
		{Role: evaluator.RoleSystem, Content: prompt.SystemPrompt},
		{Role: evaluator.RoleUser, Content: replacer.Replace(prompt.UserPromptTemplate)},
	}
}

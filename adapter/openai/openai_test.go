package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/querymesh/core"
)

var _ core.Translator = (*Translator)(nil)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare statement", "SELECT 1", "SELECT 1"},
		{"fenced", "```sql\nSELECT SUM(revenue) FROM sales\n```", "SELECT SUM(revenue) FROM sales"},
		{"fenced no language", "```\nSELECT 1\n```", "SELECT 1"},
		{"fenced with prose", "Here is the query:\n```sql\nSELECT 1\n```\nLet me know!", "SELECT 1"},
		{"whitespace", "  SELECT 1\n", "SELECT 1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSQL(tt.content))
		})
	}
}

func TestBuildMessages_HistoryWindow(t *testing.T) {
	history := []core.Turn{
		{Role: core.RoleUser, Content: "one"},
		{Role: core.RoleAssistant, Content: "two"},
		{Role: core.RoleUser, Content: "three"},
		{Role: core.RoleAssistant, Content: "four"},
	}
	messages := buildMessages("current", core.SessionContext{History: history}, 2)

	// system + 2 trailing history turns + current message
	assert.Len(t, messages, 4)
}

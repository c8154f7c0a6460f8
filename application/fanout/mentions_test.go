package fanout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no mentions", "great shot!", nil},
		{"single mention", "nice one @alice", []string{"alice"}},
		{"multiple mentions", "@alice @bob check this out", []string{"alice", "bob"}},
		{"duplicates collapse", "@alice and again @alice", []string{"alice"}},
		{"first-appearance order", "@zoe then @alice then @zoe", []string{"zoe", "alice"}},
		{"underscores and digits", "hi @user_42", []string{"user_42"}},
		{"punctuation terminates handle", "thanks @alice!", []string{"alice"}},
		{"email is still matched", "mail me at me@example.com", []string{"example"}},
		{"empty text", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.text))
		})
	}
}

func TestCommentPreview_ShortContentUnchanged(t *testing.T) {
	content := "short comment"

	assert.Equal(t, content, commentPreview(content))
}

func TestCommentPreview_ExactLimitUnchanged(t *testing.T) {
	content := strings.Repeat("a", previewLen)

	assert.Equal(t, content, commentPreview(content))
}

func TestCommentPreview_LongContentTruncated(t *testing.T) {
	content := strings.Repeat("a", previewLen+50)

	preview := commentPreview(content)

	assert.Equal(t, strings.Repeat("a", previewLen)+"...", preview)
}

func TestCommentPreview_TruncatesOnRuneBoundary(t *testing.T) {
	content := strings.Repeat("é", previewLen+1)

	preview := commentPreview(content)

	assert.Equal(t, strings.Repeat("é", previewLen)+"...", preview)
}

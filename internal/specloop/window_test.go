package specloop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhmac/sneebly/internal/types"
)

func TestExtractWindowReturnsWholeFileWhenSmall(t *testing.T) {
	content := "package a\n\nfunc Foo() {}\n"
	spec := types.Spec{Description: "fix Foo", SuccessCriteria: []string{"Foo returns 2"}}

	window, start, end := ExtractWindow(content, spec)
	assert.Equal(t, content, window)
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, end)
}

func TestExtractWindowScoresTowardRareIdentifier(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("filler line with common words\n")
	}
	b.WriteString("func veryUniqueHandlerName() { return 42 }\n")
	for i := 0; i < 400; i++ {
		b.WriteString("more filler content here\n")
	}
	content := b.String()
	assert.Greater(t, len(content), windowFileSizeThreshold)

	spec := types.Spec{
		Description:     "update veryUniqueHandlerName to return 43",
		SuccessCriteria: []string{"veryUniqueHandlerName returns 43"},
	}

	window, start, end := ExtractWindow(content, spec)
	assert.Contains(t, window, "veryUniqueHandlerName")
	assert.Less(t, end-start, len(strings.Split(content, "\n")))
}

func TestQueryTermsExcludesStopwordsAndShortWords(t *testing.T) {
	spec := types.Spec{Description: "the user is not able to log in", SuccessCriteria: []string{"login succeeds"}}
	terms := queryTerms(spec)
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "is")
	assert.Contains(t, terms, "login")
	assert.Contains(t, terms, "succeeds")
}

package tools

import (
	"fmt"
	"strings"
)

const defaultSearchResults = 4

// SearchDocumentsTool searches the local document index for text
// segments semantically similar to a query.
type SearchDocumentsTool struct {
	searcher Searcher
}

func NewSearchDocumentsTool(searcher Searcher) *SearchDocumentsTool {
	return &SearchDocumentsTool{searcher: searcher}
}

func (t *SearchDocumentsTool) Name() string {
	return "search_documents"
}

func (t *SearchDocumentsTool) Description() string {
	return "Search the locally indexed reference documents and return the text segments most relevant to the query."
}

func (t *SearchDocumentsTool) Parameters() []ParameterDef {
	return []ParameterDef{
		{
			Name:        "query",
			Type:        "string",
			Description: "The text to find relevant information about",
			Required:    true,
		},
		{
			Name:        "k",
			Type:        "number",
			Description: "Number of segments to retrieve (default 4)",
			Required:    false,
		},
	}
}

func (t *SearchDocumentsTool) Execute(args map[string]any) (string, error) {
	query, ok := stringArg(args, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("missing required parameter: query")
	}

	k := defaultSearchResults
	if v, ok := args["k"]; ok {
		// JSON numbers arrive as float64
		if f, ok := v.(float64); ok && int(f) > 0 {
			k = int(f)
		}
	}

	segments, err := t.searcher.Search(query, k)
	if err != nil {
		return "", fmt.Errorf("document search failed: %v", err)
	}
	if len(segments) == 0 {
		return "No matching documents found.", nil
	}

	var result strings.Builder
	for i, seg := range segments {
		result.WriteString(fmt.Sprintf("[%d] %s\n", i+1, seg))
	}
	return result.String(), nil
}

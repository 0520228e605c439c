package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/codebook/internal/toc"
)

// AnalystInstructions is the system prompt the reasoner is configured with.
const AnalystInstructions = `You are an expert in analyzing property and real estate documents.
Your task is to examine a table of contents and identify which sections are most likely
to contain a requested kind of data.

- Zoning data: look for sections about zoning codes, land use designations, permitted uses,
  development standards, district regulations, etc.

When analyzing a table of contents, prioritize sections with clear relevance in their titles.
If no sections directly mention the target data type, look for related concepts or
broader categories where such information might be contained.

Rank your confidence in each section you identify on a scale of 1-5,
where 5 means you're highly confident the section contains relevant information.`

// BuildPrompt asks for the sections of entries most likely to hold
// information about target.
func BuildPrompt(entries []toc.FlattenedEntry, target string) (string, error) {
	var listing bytes.Buffer
	enc := json.NewEncoder(&listing)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return "", fmt.Errorf("marshal entries: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "I need to find information about %s in a document.\n", target)
	sb.WriteString("Here is the table of contents:\n\n")
	sb.Write(bytes.TrimRight(listing.Bytes(), "\n"))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Please identify which sections are most likely to contain information about %s.\n", target)
	sb.WriteString(`For each section you identify, provide:
1. The section ID
2. The section title
3. Your confidence level (1-5) that it contains relevant information
4. A brief explanation of why you think it's relevant

Format your response as a JSON array of objects with these properties:
[
  {
    "sectionId": "id string",
    "sectionTitle": "title string",
    "confidenceLevel": number,
    "explanation": "explanation string"
  },
  ...
]

Include only the JSON in your response, with no additional text.`)
	return sb.String(), nil
}

// EstimateTokens gives a rough token count (about 1.33 tokens per word).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

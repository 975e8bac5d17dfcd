package ai

import (
	"fmt"
	"strings"
	"time"
)

const analysisSystemPrompt = `You are a financial analyst. Output strictly valid JSON.`

const analysisInstructionsTmpl = `Write an economic analysis of the article described by the metadata below.
Return ONLY a JSON object with exactly these keys:
  "summary": string
  "background": array of strings
  "timeline_positioning": array of strings
  "geopolitical_impact": array of strings
  "market_impact": object with keys "equities", "rates", "fx", "commodities", "credit", each an array of strings
  "uncertainties": array of strings
  "what_to_watch_next": array of strings
Give at least one entry in every array. The article body is not stored, so reason only from the excerpt provided.
Include uncertainties and conditional outcomes; avoid categorical claims.
Write all string values in %s.`

const scriptSystemPrompt = `You are a professional script writer for finance podcasts.`

const scriptInstructionsTmpl = `Using the analysis JSON below, write an audio script of about 3 to 7 minutes in %s.
Use a natural spoken register and follow this structure in order: conclusion, background, market impact, what to watch next.
Avoid categorical claims and include at least one conditional ("if X, then Y") statement.
Return only the script text, with no headings or stage directions.`

const digestInstructionsTmpl = `From the analysis JSON of the articles below, write today's summary script in %s.
Follow this structure in order: conclusion, background, market impact, what to watch next.
Aim for 3 to 7 minutes, use a natural spoken register, avoid categorical claims and include at least one conditional ("if X, then Y") statement.
Return only the script text, with no headings or stage directions.`

// AnalysisPrompt builds the system and user prompts for the per-article
// analysis. The output is deterministic for a given entry.
func AnalysisPrompt(entry ArticleEntry, language string) (systemPrompt string, userPrompt string) {
	systemPrompt = analysisSystemPrompt

	published := "unknown"
	if entry.PublishedAt != nil {
		published = entry.PublishedAt.UTC().Format(time.RFC3339)
	}
	excerpt := entry.Excerpt
	if strings.TrimSpace(excerpt) == "" {
		excerpt = "none"
	}
	tags := strings.Join(entry.Tags, ", ")
	if tags == "" {
		tags = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, analysisInstructionsTmpl, language)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Title: %s\n", entry.Title)
	fmt.Fprintf(&b, "Source: %s\n", entry.Source)
	fmt.Fprintf(&b, "Published: %s\n", published)
	fmt.Fprintf(&b, "Excerpt: %s\n", excerpt)
	fmt.Fprintf(&b, "Tags: %s", tags)

	userPrompt = b.String()
	return systemPrompt, userPrompt
}

// ScriptPrompt builds the prompts for a single-article narration script.
func ScriptPrompt(title, source string, analysisJSON []byte, language string) (systemPrompt string, userPrompt string) {
	systemPrompt = scriptSystemPrompt

	var b strings.Builder
	fmt.Fprintf(&b, scriptInstructionsTmpl, language)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Article title: %s\n", title)
	fmt.Fprintf(&b, "Source: %s\n", source)
	fmt.Fprintf(&b, "Analysis JSON: %s", analysisJSON)

	userPrompt = b.String()
	return systemPrompt, userPrompt
}

// DigestPrompt builds the prompts for the multi-article daily digest.
// Entries are numbered in the order given.
func DigestPrompt(entries []DigestEntry, language string) (systemPrompt string, userPrompt string) {
	systemPrompt = scriptSystemPrompt

	var b strings.Builder
	fmt.Fprintf(&b, digestInstructionsTmpl, language)
	b.WriteString("\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "\n%d. %s (%s)\n%s", i+1, e.Title, e.Source, e.Analysis)
	}

	userPrompt = b.String()
	return systemPrompt, userPrompt
}

// Messages pairs a system and user prompt into a chat message list.
func Messages(systemPrompt, userPrompt string) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}

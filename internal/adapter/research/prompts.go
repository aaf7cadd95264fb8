package research

import (
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

const (
	searchTemperature     = 0.0
	specialistTemperature = 0.1
	responseTemperature   = 0.3
)

const searchSystemPrompt = `You are a multiplatform web discovery specialist. You identify public, directly relevant links for a query and group them by platform: Instagram, LinkedIn, YouTube, X (formerly Twitter) and the open web. You never include duplicates or irrelevant results and you never fabricate links.`

func searchUserPrompt(query string, perPlatform int) string {
	return fmt.Sprintf(`Query: %q

Return JSON with these exact keys: ["instagram","linkedin","youtube","x","web"]
Each key has a list of at most %d URLs, most relevant first.
Empty list [] if no relevant result for that platform.

Rules:
- instagram: instagram.com URLs only
- linkedin: linkedin.com URLs only
- youtube: youtube.com URLs only
- x: x.com or twitter.com URLs only
- web: article/blog URLs only

Output: pure JSON, no markdown, no explanation.`, query, perPlatform)
}

func specialistSystemPrompt(platform domain.AgentID) string {
	name := platformName(platform)
	return fmt.Sprintf(`You are a %s deep content analysis specialist. Given public %s URLs, extract high-signal facts, insights and key information from the content. Never speculate or infer beyond what is directly available.`, name, name)
}

func specialistUserPrompt(query string, urls []string, pageText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research query: %q\n\nSources:\n", query)
	for _, u := range urls {
		b.WriteString("- " + u + "\n")
	}
	if pageText != "" {
		b.WriteString("\nFetched content:\n")
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	b.WriteString("\nSummarize the key findings relevant to the query in 3-5 bullet points (max 200 words). Cite the source URL for each point.")
	return b.String()
}

const synthesisSystemPrompt = `You are a deep research synthesis specialist. You synthesize research findings from multiple sources into a clear, engaging and informative response that answers the user's query with depth and accuracy.`

func synthesisUserPrompt(query, searchSummary string, findings []domain.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original Query: %q\n\nResearch Context:\n", query)
	if searchSummary != "" {
		b.WriteString("Search summary: " + searchSummary + "\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "\n### %s\n%s\n", platformName(f.AgentID), f.Content)
	}
	if len(findings) == 0 {
		b.WriteString("\nNo platform findings are available.\n")
	}
	b.WriteString(`
Your Task:
Create a comprehensive, well-structured markdown response that:

1. Directly answers the user's query with clear, actionable insights
2. Synthesizes findings from all available sources into coherent themes
3. Provides specific details with supporting evidence from sources
4. Uses clear headings and bullet points for easy scanning
5. Includes source links where applicable
6. Highlights key takeaways and important implications

Structure your response with:
- Executive Summary (2-3 key points)
- Detailed Findings (organized by topic/theme)
- Key Insights & Implications
- Sources & References`)
	return b.String()
}

func platformName(id domain.AgentID) string {
	switch id {
	case domain.AgentInstagram:
		return "Instagram"
	case domain.AgentLinkedIn:
		return "LinkedIn"
	case domain.AgentYouTube:
		return "YouTube"
	case domain.AgentX:
		return "X"
	case domain.AgentWeb:
		return "Web"
	}
	return string(id)
}

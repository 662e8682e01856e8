package summarize

import (
	"fmt"
	"strings"
)

// Divider separates chunk summaries in the reduce prompt.
const Divider = "\n\n---\n\n"

// Prompts are templates whose first "%s" marks where the text goes. Any
// other "%" is literal. A template without "%s" gets the text appended.
type Prompts struct {
	System string
	Map    string
	Reduce string
	Direct string
}

const sections = `## Research Idea
[What is the core research question or idea?]

## Contribution
[What are the main contributions?]

## Theory
[What theoretical framework is used?]

## Hypothesis Development
[What hypotheses are developed?]

## Research Design
[What methodology and research design is used?]

## Results
[What are the key findings and results?]`

// DefaultPrompts returns the research-note templates.
func DefaultPrompts() Prompts {
	return Prompts{
		System: "You are a research paper summarizer. Your job is to extract specific information from academic papers and present it in a structured format. Do not ask questions, do not add commentary, and do not mention that you read the paper. Simply provide the requested information.",
		Map: `The text below is one excerpt of a longer research paper. List, as short bullet points, only what the excerpt itself states:
- claims and research questions
- methodology and data
- evidence and results, with numbers where given
- definitions of key terms

Write "none" under a heading if the excerpt has nothing for it. No commentary.

EXCERPT:
%s`,
		Reduce: `The notes below were extracted from consecutive excerpts of one research paper, in order, separated by "---". Some excerpts may be marked unavailable. Combine them into one summary with exactly this structure:

` + sections + `

---

NOTES:
%s

---

Now provide the summary following the exact structure above. Do not ask clarifying questions. Do not add statements like "I have read" or "I analyzed". Just provide the extracted information.`,
		Direct: `Extract the following information from this research paper. Provide ONLY the requested information with no additional commentary, questions, or meta-statements.

` + sections + `

---

PAPER CONTENT:
%s

---

Now provide the summary following the exact structure above. Do not ask clarifying questions. Do not add statements like "I have read" or "I analyzed". Just provide the extracted information.`,
	}
}

func (p Prompts) withDefaults() Prompts {
	def := DefaultPrompts()
	if p.System == "" {
		p.System = def.System
	}
	if p.Map == "" {
		p.Map = def.Map
	}
	if p.Reduce == "" {
		p.Reduce = def.Reduce
	}
	if p.Direct == "" {
		p.Direct = def.Direct
	}
	return p
}

const placeholder = "%s"

func fill(tpl, text string) string {
	if !strings.Contains(tpl, placeholder) {
		return tpl + "\n\n" + text
	}
	return strings.Replace(tpl, placeholder, text, 1)
}

// joinSummaries concatenates summaries, which must already be in sequence
// order.
func joinSummaries(summaries []ChunkSummary) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = fmt.Sprintf("[Excerpt %d]\n%s", s.SequenceID, s.Text)
	}
	return strings.Join(parts, Divider)
}

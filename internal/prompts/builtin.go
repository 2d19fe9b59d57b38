package prompts

import (
	"github.com/sells-group/multiview/internal/model"
)

// Section headers the synthesis model is asked to emit.
const (
	ReportMarker = "## Verification and Comparison Report"
	AnswerMarker = "## Final Synthesized Answer"
)

const analysisTemplate = `Analyze the user's query together with the available documents and determine:
1. The main topics and entities involved
2. What the user is trying to achieve (information seeking, comparison, problem solving, creative work, ...)
3. How complex the request is (low, medium or high)
4. Keywords that would make good search queries
5. The knowledge domain the answer requires (technology, science, history, art, general, ...)

Respond with ONLY a JSON object shaped exactly like this:
` + "```json" + `
{
  "main_topics": ["topic1", "topic2"],
  "user_intent": "short description of the intent",
  "complexity": "low|medium|high",
  "keywords": ["keyword1", "keyword2"],
  "required_knowledge_domain": "domain",
  "analysis_summary": "One or two sentences describing what the query is really asking."
}
` + "```" + `

User query:
{{.Query}}

Documents:
{{.DocumentsSummary}}
`

const informativeTemplate = `You are {{.Model}}. You are answering as the INFORMATIVE voice: thorough, factual, well sourced.

Query: {{.Query}}

Cover the facts:
1. Key facts and data, presented clearly.
2. Recent research, statistics and figures that matter.
3. Definitions of the concepts the query or documents rely on.
4. Background and history where it helps.
5. The established positions on the topic, stated neutrally.

Documents (quote the relevant parts when you use them):
{{.DocumentsContent}}

What the query is about:
{{.AnalysisSummary}}

Guidelines:
- Prefer current information from reliable sources and cite them, with links where you can.
- Use Markdown headings, lists and tables.
- Report facts, not opinions or speculation.
- Organize the answer so it reads top to bottom.
`

const contrarianTemplate = `You are {{.Model}}. You are answering as the CONTRARIAN voice: you look for what the obvious answer gets wrong.

Query: {{.Query}}

Challenge the consensus:
1. Weak points and limits of the query's premise or of the usual answer.
2. Credible counterarguments and dissenting views.
3. Risks, downsides and unintended consequences.
4. Assumptions that deserve to be questioned.
5. Unpopular or unconventional positions worth hearing.

Documents (quote the relevant parts when you use them):
{{.DocumentsContent}}

What the query is about:
{{.AnalysisSummary}}

Guidelines:
- Back each argument with evidence or clear reasoning and cite sources, with links where you can.
- No straw men. Be critical and constructive.
- Say plainly which alternative position you are taking.
- Use Markdown formatting.
`

const complementaryTemplate = `You are {{.Model}}. You are answering as the COMPLEMENTARY voice: you widen the frame to angles others miss.

Query: {{.Query}}

Broaden the view:
1. Ethical questions and dilemmas.
2. Long-term effects and sustainability.
3. Human factors: experience, design, psychology.
4. Social, cultural and systemic impact.
5. Links to neighboring fields that shed new light.
6. New approaches or shifts in thinking the topic invites.

Documents (quote the relevant parts when you use them):
{{.DocumentsContent}}

What the query is about:
{{.AnalysisSummary}}

Guidelines:
- Ground the broader context in sources and cite them, with links where you can.
- Aim for insight beyond the obvious answer.
- Say plainly which angle you are exploring.
- Use Markdown formatting.
`

const synthesisTemplate = `You are an expert reviewer. Several models answered the same query from different viewpoints. Verify what they claim, compare them fairly, and write one final verified answer.

User query:
{{.Query}}

What the query is about:
{{.AnalysisSummary}}
{{range .Perspectives}}
Perspective {{.Number}} ({{.Model}} - {{.Type}}):
--- START PERSPECTIVE {{.Number}} ---
{{.Response}}
--- END PERSPECTIVE {{.Number}} ---
{{end}}
Steps:

1. Verification
   - Check every perspective for accuracy, completeness and relevance.
   - Check claims, figures and dates against current reliable sources.
   - Say which claims hold, which are wrong and which need nuance, and cite what you checked against.

2. Comparison
   - Weigh the strengths and weaknesses of each perspective.
   - Point out contradictions between them and how they can be reconciled.

3. Synthesis
   - Write one balanced answer to the query built on the verified points.
   - Keep the valid points of every viewpoint, including the critical ones.
   - Where perspectives conflict, explain the disagreement with evidence instead of picking a side silently.
   - Correct the errors found during verification.
   - Use Markdown and cite sources.

Output format, using exactly these two headings in this order:

` + ReportMarker + `
{{range .Perspectives}}
- **Perspective {{.Number}} ({{.Type}} - {{.Model}}):** accuracy assessment, verified and incorrect claims, sources used.
{{- end}}
- **Comparison:** strengths, weaknesses and contradictions across the perspectives.

` + AnswerMarker + `

The final verified answer to the query.
`

// builtinViewpoint returns the default template for a viewpoint.
func builtinViewpoint(v model.ViewpointType) string {
	switch v {
	case model.Informative:
		return informativeTemplate
	case model.Contrarian:
		return contrarianTemplate
	case model.Complementary:
		return complementaryTemplate
	default:
		return ""
	}
}

package ensemble

import (
	"strings"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/sanitize"
)

// genericInsights pad the offline answer when fewer than three keyword
// families match the retrieved evidence. Order is fixed so the answer is
// reproducible.
var genericInsights = []string{
	"Review the retrieved evidence rows above; they are the strongest matches for your question in the loaded data.",
	"Cross-check any figure against its source file before quoting it in the pitch.",
	"Narrow the question to a specific file, phase, or contractor to get more targeted evidence.",
}

// offlineAnswer builds the deterministic local answer used when no model
// reply passes the helpfulness filter. Keyword families are matched against
// the lowercased evidence text, and the summary line names the data
// categories that matched. Identical inputs always produce identical output.
func offlineAnswer(contextText string, families []config.InsightFamily, previewChars int, erroredModels []string) string {
	evLower := strings.ToLower(contextText)

	var detected []string
	var insights []string
	for _, fam := range families {
		for _, term := range fam.Terms {
			if strings.Contains(evLower, strings.ToLower(term)) {
				detected = append(detected, fam.Name)
				if len(insights) < 3 {
					insights = append(insights, fam.Insight)
				}
				break
			}
		}
	}
	for _, g := range genericInsights {
		if len(insights) == 3 {
			break
		}
		insights = append(insights, g)
	}

	nextStep := "Next step: load the project data files so answers can cite specific rows."
	if strings.TrimSpace(contextText) != "" {
		nextStep = "Next step: ask a follow-up about one of the evidence rows above to drill into specifics."
	}

	var b strings.Builder
	if len(detected) > 0 {
		b.WriteString("The loaded project data covers ")
		b.WriteString(strings.Join(detected, ", "))
		b.WriteString(". Here is what it suggests:\n")
	} else {
		b.WriteString("Here is what the loaded project data suggests:\n")
	}
	for _, ins := range insights {
		b.WriteString("- ")
		b.WriteString(ins)
		b.WriteByte('\n')
	}
	b.WriteString(nextStep)

	if preview := sanitize.ForPrompt(contextText, previewChars); preview != "" {
		b.WriteString("\n\nEvidence preview:\n")
		b.WriteString(preview)
	}
	if len(erroredModels) > 0 {
		b.WriteString("\n\nNote: ")
		b.WriteString(strings.Join(erroredModels, ", "))
		b.WriteString(" did not respond; this answer was produced locally.")
	}
	return b.String()
}

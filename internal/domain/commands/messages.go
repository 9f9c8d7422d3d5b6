package commands

import (
	"fmt"
	"strings"

	"github.com/rios0rios0/depflow/internal/domain/entities"
)

const commitSubject = "chore(deps): automated dependency updates"

// --- commit and pull request text generation ---

func generateCommitMessage(batch entities.UpdateBatch) string {
	var sb strings.Builder
	sb.WriteString(commitSubject + "\n")
	for _, group := range batch.GroupByEcosystem() {
		sb.WriteString(fmt.Sprintf("\n%s updates:\n", group.Ecosystem.DisplayName()))
		for _, update := range group.Updates {
			sb.WriteString(fmt.Sprintf(
				"- %s %s → %s\n", update.Name, update.CurrentVersion, update.LatestVersion,
			))
		}
	}
	return sb.String()
}

func generatePRTitle(batch entities.UpdateBatch) string {
	noun := "dependencies"
	if batch.Len() == 1 {
		noun = "dependency"
	}

	ecosystems := make([]string, 0, len(batch.Ecosystems()))
	for _, ecosystem := range batch.Ecosystems() {
		ecosystems = append(ecosystems, string(ecosystem))
	}
	return fmt.Sprintf(
		"chore(deps): updated %d %s (%s)",
		batch.Len(), noun, strings.Join(ecosystems, ", "),
	)
}

func generatePRDescription(batch entities.UpdateBatch, testsRan bool) string {
	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	sb.WriteString("This PR contains automated dependency updates:\n")
	for _, group := range batch.GroupByEcosystem() {
		sb.WriteString(fmt.Sprintf(
			"\n### %s (%d updates)\n\n", group.Ecosystem.DisplayName(), len(group.Updates),
		))
		for _, update := range group.Updates {
			sb.WriteString(fmt.Sprintf(
				"- **%s**: %s → %s (%s)\n",
				update.Name, update.CurrentVersion, update.LatestVersion, update.Type(),
			))
		}
	}

	sb.WriteString("\n## Validation\n\n")
	if testsRan {
		sb.WriteString("- Automated tests passed for the primary ecosystem\n")
	} else {
		sb.WriteString("- Automated tests were skipped for this run\n")
	}
	sb.WriteString("\n---\n")
	sb.WriteString("*This PR was automatically created by [depflow](https://github.com/rios0rios0/depflow)*\n")
	return sb.String()
}

// generateDryRunLines renders one line per accepted update.
func generateDryRunLines(batch entities.UpdateBatch) []string {
	lines := make([]string, 0, batch.Len())
	for _, update := range batch.Updates() {
		lines = append(lines, fmt.Sprintf(
			"%s: %s %s → %s (%s)",
			update.Ecosystem, update.Name, update.CurrentVersion, update.LatestVersion, update.Type(),
		))
	}
	return lines
}

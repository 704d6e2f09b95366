package export

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownExporter exports transcripts in Markdown format
type MarkdownExporter struct{}

// Export exports a transcript to Markdown format
func (e *MarkdownExporter) Export(transcript *Transcript, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Session transcript\n\n")
	_, _ = fmt.Fprintf(w, "**Exported:** %s  \n", transcript.ExportedAt.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(transcript.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range transcript.Messages {
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n%s\n\n",
			titleRole(msg.Role), msg.Timestamp.Format("15:04:05"), msg.Content)

		for _, inv := range msg.ToolInvocations {
			state := "done"
			if inv.Executing {
				state = "still executing"
			}
			_, _ = fmt.Fprintf(w, "- tool `%s`: %s\n", inv.Name, state)
		}
		if len(msg.ToolInvocations) > 0 {
			_, _ = fmt.Fprintf(w, "\n")
		}

		if i < len(transcript.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	if len(transcript.Tasks) > 0 {
		_, _ = fmt.Fprintf(w, "---\n\n")
		_, _ = fmt.Fprintf(w, "## Background tasks\n\n")
		for _, task := range transcript.Tasks {
			_, _ = fmt.Fprintf(w, "- `%s` — %s (%s, %d%%)\n",
				task.ID, task.Status, task.Progress.StageLabel, task.Progress.Percent)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}

func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

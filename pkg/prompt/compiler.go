package prompt

import (
	"fmt"
	"strings"
)

// DefaultMaxResults is the quantity bound used when a selection does not
// specify one. Matches the backend's own sourcing default.
const DefaultMaxResults = 20

// Selection is the structured output of the sourcing wizard.
type Selection struct {
	Role       string
	Location   string
	Skills     []string
	JobID      string
	Experience string
	MaxResults int
}

// Compiled is the two views of one outbound message. Display is shown to the
// user and stored in history; Wire additionally carries the machine-readable
// directive suffix and is what actually goes to the backend.
type Compiled struct {
	Display string
	Wire    string
}

// Compile turns a wizard selection into an outbound sourcing message. Pure;
// no I/O.
func Compile(sel Selection) Compiled {
	max := sel.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}

	var b strings.Builder

	role := strings.TrimSpace(sel.Role)
	if role == "" {
		role = "suitable"
	}
	fmt.Fprintf(&b, "Source up to %d candidates for a %s role", max, role)

	if location := strings.TrimSpace(sel.Location); location != "" {
		fmt.Fprintf(&b, " in %s", location)
	}
	b.WriteString(".")

	if skills := joinSkills(sel.Skills); skills != "" {
		fmt.Fprintf(&b, " Required skills: %s.", skills)
	}

	if experience := strings.TrimSpace(sel.Experience); experience != "" {
		fmt.Fprintf(&b, " Experience: %s.", experience)
	}

	if jobID := strings.TrimSpace(sel.JobID); jobID != "" {
		fmt.Fprintf(&b, " Add them to job %s.", jobID)
	} else {
		b.WriteString(" Create the job first if it does not exist yet.")
	}

	display := b.String()

	return Compiled{
		Display: display,
		Wire:    display + " " + Directive(max),
	}
}

// Directive renders the fixed-syntax suffix that conveys the exact resource
// bound to the backend.
func Directive(maxResults int) string {
	return fmt.Sprintf("[max_results=%d]", maxResults)
}

func joinSkills(skills []string) string {
	cleaned := make([]string, 0, len(skills))
	for _, skill := range skills {
		if s := strings.TrimSpace(skill); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return strings.Join(cleaned, ", ")
}

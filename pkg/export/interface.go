package export

import (
	"fmt"
	"io"
	"time"

	"github.com/geeth24/xpool-agent/pkg/chat"
	"github.com/geeth24/xpool-agent/pkg/tasks"
)

// Transcript is a point-in-time snapshot of a session: the conversation plus
// the background tasks it spawned.
type Transcript struct {
	ExportedAt time.Time           `json:"exported_at"`
	Messages   []chat.Message      `json:"messages"`
	Tasks      []tasks.TrackedTask `json:"tasks,omitempty"`
}

// NewTranscript builds a transcript from conversation and task snapshots.
func NewTranscript(messages []chat.Message, taskList []tasks.TrackedTask) *Transcript {
	return &Transcript{
		ExportedAt: time.Now(),
		Messages:   messages,
		Tasks:      taskList,
	}
}

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(transcript *Transcript, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return &JSONExporter{}, nil
	case "jsonl":
		return &JSONLExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, jsonl, yaml, md)", format)
	}
}

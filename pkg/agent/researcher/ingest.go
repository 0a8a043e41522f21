package researcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"deep-research-be/internal/pkg/logger"
	"deep-research-be/pkg/rag"
	"deep-research-be/pkg/tools"

	"github.com/google/uuid"
)

// MinIngestLength is the acceptance floor: cleaned text must exceed this
// many characters to be committed.
const MinIngestLength = 200

var imageMarkupPattern = regexp.MustCompile(`!\[.*?\]\(.*?\)`)

// Lines containing these markers are boilerplate (copyright footers,
// registration notices, hotlines) and are dropped before the length check.
var noiseMarkers = []string{
	"版权所有", "©", "备案", "110报警", "营业执照", "免责声明", "出版物许可证",
	"All rights reserved",
}

// IngestOutcome reports what the filter did with one tool result.
type IngestOutcome struct {
	// Applicable is false for non-full-text results (search listings),
	// which pass through untouched and do not consult the supervisor.
	Applicable    bool
	Accepted      bool
	SourceURL     string
	CleanedLength int
	Chunks        int
}

// Filter intercepts full-text fetch payloads: cleans them, commits
// qualifying content to the retrieval store, and swaps the oversized payload
// in the transcript for a short notice. This bounds transcript memory.
type Filter struct {
	store *rag.Store
	log   logger.ILogger
}

func NewFilter(store *rag.Store, log logger.ILogger) *Filter {
	return &Filter{
		store: store,
		log:   log,
	}
}

// Ingest processes the unit's latest tool result.
func (f *Filter) Ingest(ctx context.Context, sessionId uuid.UUID, unit *Unit, result ToolResult) (IngestOutcome, error) {
	if result.Tool != tools.ToolFetchPage && result.Tool != tools.ToolBatchFetch {
		return IngestOutcome{Applicable: false}, nil
	}

	sourceURL := "unknown source"
	if call, found := unit.CallByID(result.CallID); found && len(call.URLs) > 0 {
		sourceURL = strings.Join(call.URLs, ", ")
	}

	cleaned := CleanContent(result.Content)
	length := utf8.RuneCountInString(cleaned)

	if length <= MinIngestLength {
		unit.ReplaceResult(result.CallID, fmt.Sprintf(
			"[rejected] Content too short (%d chars) and was discarded. Likely an anti-bot page or an empty extraction.", length))
		f.log.Warn("ingest", "content rejected", map[string]interface{}{
			"task_index": unit.TaskIndex,
			"source_url": sourceURL,
			"length":     length,
		})
		return IngestOutcome{Applicable: true, Accepted: false, SourceURL: sourceURL, CleanedLength: length}, nil
	}

	chunks, err := f.store.Commit(ctx, sessionId, cleaned, sourceURL)
	if err != nil {
		return IngestOutcome{Applicable: true, Accepted: false, SourceURL: sourceURL, CleanedLength: length},
			fmt.Errorf("commit fetched content: %w", err)
	}

	unit.ReplaceResult(result.CallID,
		"[stored] Content committed to the knowledge store. The full text was removed from this context; query the store to read it.")
	f.log.Info("ingest", "content accepted", map[string]interface{}{
		"task_index": unit.TaskIndex,
		"source_url": sourceURL,
		"length":     length,
		"chunks":     chunks,
	})
	return IngestOutcome{Applicable: true, Accepted: true, SourceURL: sourceURL, CleanedLength: length, Chunks: chunks}, nil
}

// CleanContent strips image markup and boilerplate lines from a fetched
// payload.
func CleanContent(raw string) string {
	cleaned := imageMarkupPattern.ReplaceAllString(raw, "")

	lines := strings.Split(cleaned, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		noisy := false
		for _, marker := range noiseMarkers {
			if strings.Contains(line, marker) {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

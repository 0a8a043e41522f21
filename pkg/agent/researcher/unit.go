package researcher

import (
	"regexp"
	"strings"

	"deep-research-be/pkg/tools"
)

// MaxRetries bounds how many times a unit loops back after a failed attempt.
// On reaching the bound the unit is forced to exhausted.
const MaxRetries = 2

// State is a unit's lifecycle position.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateExhausted State = "exhausted"
)

// Transcript entries form a closed set: a model turn, a tool call, or a tool
// result. Call id pairs calls with results because batched calls are not
// guaranteed to complete in request order.
type Entry interface {
	isEntry()
}

type ModelTurn struct {
	Content string
}

type ToolCall struct {
	CallID string
	Tool   string
	Query  string   // set for search calls
	URLs   []string // set for fetch calls
}

type ToolResult struct {
	CallID  string
	Tool    string
	Content string
}

func (ModelTurn) isEntry()  {}
func (ToolCall) isEntry()   {}
func (ToolResult) isEntry() {}

// Unit is one research pipeline instance: a task, its retry budget, and a
// transcript owned exclusively by this unit.
type Unit struct {
	Task       string
	TaskIndex  int // 1-based, order = report construction order
	RetryCount int
	State      State
	Transcript []Entry
}

func NewUnit(task string, taskIndex int) *Unit {
	return &Unit{
		Task:      task,
		TaskIndex: taskIndex,
		State:     StateRunning,
	}
}

func (u *Unit) Append(entry Entry) {
	u.Transcript = append(u.Transcript, entry)
}

// HasToolResult reports whether any tool has answered yet. No result means
// the unit is still in breadth mode and must search first.
func (u *Unit) HasToolResult() bool {
	for _, entry := range u.Transcript {
		if _, ok := entry.(ToolResult); ok {
			return true
		}
	}
	return false
}

// CallByID walks the transcript backwards for the invocation matching a
// result's call id. Used to recover the source URL of a fetched payload.
func (u *Unit) CallByID(callID string) (ToolCall, bool) {
	for i := len(u.Transcript) - 1; i >= 0; i-- {
		if call, ok := u.Transcript[i].(ToolCall); ok && call.CallID == callID {
			return call, true
		}
	}
	return ToolCall{}, false
}

// ReplaceResult swaps the content of the transcript entry holding callID's
// result. Oversized fetch payloads are replaced with a short acknowledgment
// so the transcript never grows unbounded.
func (u *Unit) ReplaceResult(callID string, content string) {
	for i := len(u.Transcript) - 1; i >= 0; i-- {
		if result, ok := u.Transcript[i].(ToolResult); ok && result.CallID == callID {
			result.Content = content
			u.Transcript[i] = result
			return
		}
	}
}

// FetchedURLs lists every URL the unit has already requested, so retries can
// target different pages.
func (u *Unit) FetchedURLs() map[string]bool {
	fetched := make(map[string]bool)
	for _, entry := range u.Transcript {
		if call, ok := entry.(ToolCall); ok {
			for _, url := range call.URLs {
				fetched[url] = true
			}
		}
	}
	return fetched
}

var listingURLPattern = regexp.MustCompile(`(?m)^URL:\s*(\S+)`)

// SearchListingURLs extracts result URLs from the most recent search
// listing in the transcript, in listing order.
func (u *Unit) SearchListingURLs() []string {
	for i := len(u.Transcript) - 1; i >= 0; i-- {
		result, ok := u.Transcript[i].(ToolResult)
		if !ok || result.Tool != tools.ToolWebSearch {
			continue
		}
		matches := listingURLPattern.FindAllStringSubmatch(result.Content, -1)
		urls := make([]string, 0, len(matches))
		seen := make(map[string]bool)
		for _, m := range matches {
			url := strings.TrimSpace(m[1])
			if url != "" && !seen[url] {
				seen[url] = true
				urls = append(urls, url)
			}
		}
		return urls
	}
	return nil
}

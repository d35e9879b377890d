// plugins/wordcount/wordcount.go
package wordcount

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bethropolis/tandem/internal/plugin"
)

// Ensure WordCount implements plugin.Plugin
var _ plugin.Plugin = (*WordCount)(nil)

// WordCount reports line, word and character counts of the document text.
type WordCount struct {
	api plugin.EditorAPI
}

// New creates a new instance of the WordCount plugin.
func New() *WordCount {
	return &WordCount{}
}

// Name returns the unique name of the plugin.
func (p *WordCount) Name() string {
	return "WordCount"
}

// Initialize registers the wc command.
func (p *WordCount) Initialize(api plugin.EditorAPI) error {
	p.api = api
	if err := api.RegisterCommand("wc", p.executeWordCount); err != nil {
		return fmt.Errorf("failed to register 'wc' command: %w", err)
	}
	return nil
}

// Shutdown performs cleanup (nothing needed for this simple plugin).
func (p *WordCount) Shutdown() error {
	return nil
}

// Stats are the counts shown by wc.
type Stats struct {
	Lines int
	Words int
	Chars int
}

// Count measures plain document text.
func Count(text string) Stats {
	if text == "" {
		return Stats{}
	}
	return Stats{
		Lines: strings.Count(text, "\n") + 1,
		Words: len(strings.Fields(text)),
		Chars: utf8.RuneCountInString(text),
	}
}

func (p *WordCount) executeWordCount(args []string) error {
	if p.api == nil {
		return fmt.Errorf("wordcount plugin not initialized with API")
	}
	s := Count(p.api.DocumentText())
	p.api.SetStatusMessage("Lines: %d, Words: %d, Chars: %d", s.Lines, s.Words, s.Chars)
	return nil
}

package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const tagKey = "tag" // The slog attribute key used for filtering tags

// filteringHandler wraps a base slog.Handler to drop records by tag, package or file.
type filteringHandler struct {
	baseHandler slog.Handler
	cfg         *Config
}

func newFilteringHandler(base slog.Handler, cfg *Config) *filteringHandler {
	return &filteringHandler{
		baseHandler: base,
		cfg:         cfg,
	}
}

// Enabled checks if the level is enabled by the base handler.
func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.baseHandler.Enabled(ctx, level)
}

func foundInSet(set map[string]struct{}, key string) bool {
	if set == nil {
		return false
	}
	_, found := set[key]
	return found
}

// allowed applies the disabled-then-enabled rule shared by every filter dimension.
// An empty key only passes when no enabled list is configured.
func allowed(enabled, disabled map[string]struct{}, key string) bool {
	if foundInSet(disabled, key) {
		return false
	}
	if enabled != nil && !foundInSet(enabled, key) {
		return false
	}
	return true
}

// recordSource returns the package directory and file name the record was logged from.
func recordSource(r slog.Record) (pkg, file string) {
	if r.PC == 0 {
		return "", ""
	}
	frames := runtime.CallersFrames([]uintptr{r.PC})
	frame, _ := frames.Next()
	if frame.File == "" {
		return "", ""
	}
	return filepath.Base(filepath.Dir(frame.File)), filepath.Base(frame.File)
}

// Handle applies filtering logic before passing the record to the base handler.
func (h *filteringHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg == nil {
		return h.baseHandler.Handle(ctx, r)
	}

	pkg, file := recordSource(r)
	if pkg != "" && !allowed(h.cfg.enabledPackagesSet, h.cfg.disabledPackagesSet, strings.ToLower(pkg)) {
		h.trace("package %q filtered: %s", pkg, r.Message)
		return nil
	}
	if file != "" && !allowed(h.cfg.enabledFilesSet, h.cfg.disabledFilesSet, strings.ToLower(file)) {
		h.trace("file %q filtered: %s", file, r.Message)
		return nil
	}

	var tag string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == tagKey {
			tag = strings.ToLower(a.Value.String())
			return false
		}
		return true
	})

	if tag == "" {
		// Untagged records are dropped when the user asked for specific tags only.
		if h.cfg.enabledTagsSet != nil {
			h.trace("untagged record filtered: %s", r.Message)
			return nil
		}
	} else if !allowed(h.cfg.enabledTagsSet, h.cfg.disabledTagsSet, tag) {
		h.trace("tag %q filtered: %s", tag, r.Message)
		return nil
	}

	return h.baseHandler.Handle(ctx, r)
}

func (h *filteringHandler) trace(format string, args ...interface{}) {
	if debugFilter {
		fmt.Fprintf(os.Stderr, "[FILTER] "+format+"\n", args...)
	}
}

// WithAttrs returns a new handler with attributes added.
func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newFilteringHandler(h.baseHandler.WithAttrs(attrs), h.cfg)
}

// WithGroup returns a new handler with a group added.
func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return newFilteringHandler(h.baseHandler.WithGroup(name), h.cfg)
}

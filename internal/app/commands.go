package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bethropolis/tandem/internal/docapi"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/modehandler"
	"github.com/bethropolis/tandem/internal/surface"
)

// maxListedVersions caps how many versions fit on the status line.
const maxListedVersions = 5

// maxListedDocuments caps the document list the same way.
const maxListedDocuments = 8

// registerAppCommands registers the built-in command line entries.
func registerAppCommands(app *App) {
	sess := app.session
	sb := app.statusBar

	commands := map[string]modehandler.CommandFunc{
		"save": func(args []string) error {
			sess.SaveNow()
			sb.SetTemporaryMessage("Saving...")
			return nil
		},
		"quit": func(args []string) error {
			app.modeHandler.Quit()
			return nil
		},
		"export": func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: export <html|txt|doc>")
			}
			// Export reports success and failure on the status bar itself.
			_, _ = sess.Export(args[0])
			return nil
		},
		"copy": func(args []string) error {
			return sess.CopyText()
		},
		"replace": func(args []string) error {
			if len(args) != 2 {
				return errors.New(`usage: replace <pattern> "<replacement>"`)
			}
			_, err := sess.Replace(args[0], args[1])
			return err
		},
		"delete": func(args []string) error {
			sb.SetTemporaryMessage("Deleting document %s...", sess.Config().DocID)
			sess.Delete()
			return nil
		},
		"draft": func(args []string) error {
			if err := sess.RestoreDraft(); err != nil {
				return fmt.Errorf("restore draft: %w", err)
			}
			sb.SetTemporaryMessage("Local draft restored")
			return nil
		},
		"versions": func(args []string) error {
			sess.Versions(func(versions []docapi.Version, err error) {
				if err != nil {
					logger.Warnf("App: listing versions: %v", err)
					sb.SetTemporaryMessage("Could not list versions: %v", err)
				} else {
					sb.SetTemporaryMessage("%s", formatVersions(versions))
				}
				app.requestRedraw()
			})
			return nil
		},
		"version": func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: version <version-id>")
			}
			sess.Version(args[0], func(v docapi.Version, err error) {
				if err != nil {
					logger.Warnf("App: loading version %s: %v", args[0], err)
					sb.SetTemporaryMessage("Could not load version %s: %v", args[0], err)
				} else {
					sb.SetBlockingMessage("%s", formatVersion(v))
				}
				app.requestRedraw()
			})
			return nil
		},
		"documents": func(args []string) error {
			sess.Documents(func(docs []docapi.Summary, err error) {
				if err != nil {
					logger.Warnf("App: listing documents: %v", err)
					sb.SetTemporaryMessage("Could not list documents: %v", err)
				} else {
					sb.SetTemporaryMessage("%s", formatDocuments(docs))
				}
				app.requestRedraw()
			})
			return nil
		},
		"revert": func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: revert <version-id>")
			}
			sess.Revert(args[0])
			return nil
		},
		"theme": func(args []string) error {
			if len(args) == 0 {
				sb.SetTemporaryMessage("Current theme: %s", app.GetTheme().Name)
				return nil
			}
			themeName := strings.Join(args, " ") // Allow theme names with spaces
			if err := app.SetTheme(themeName); err != nil {
				themeList := strings.Join(app.themeManager.ListThemes(), ", ")
				return fmt.Errorf("theme '%s' not found. Available: %s", themeName, themeList)
			}
			sb.SetTemporaryMessage("Theme set to: %s", themeName)
			return nil
		},
		"themes": func(args []string) error {
			sb.SetTemporaryMessage("Available themes: %s", strings.Join(app.themeManager.ListThemes(), ", "))
			return nil
		},
	}

	for name, fn := range commands {
		if err := app.modeHandler.RegisterCommand(name, fn); err != nil {
			logger.Warnf("Failed to register ':%s' command: %v", name, err)
		}
	}
}

// formatVersions renders the newest versions as one status line.
func formatVersions(versions []docapi.Version) string {
	if len(versions) == 0 {
		return "No saved versions"
	}
	shown := versions
	if len(shown) > maxListedVersions {
		shown = shown[:maxListedVersions]
	}
	parts := make([]string, 0, len(shown))
	for _, v := range shown {
		editor := v.Editor
		if editor == "" {
			editor = "?"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", v.ID, v.Timestamp.Local().Format("Jan 2 15:04"), editor))
	}
	line := "Versions: " + strings.Join(parts, " | ")
	if extra := len(versions) - len(shown); extra > 0 {
		line += fmt.Sprintf(" (+%d more)", extra)
	}
	return line
}

// formatVersion shows a saved version's text on one line.
func formatVersion(v docapi.Version) string {
	text, err := surface.PlainText(v.Content)
	if err != nil {
		text = v.Content
	}
	text = strings.ReplaceAll(text, "\n", " / ")
	if text == "" {
		text = "(empty)"
	}
	return fmt.Sprintf("Version %s by %s, %s: %s", v.ID, v.Editor, v.Timestamp.Local().Format("Jan 2 15:04"), text)
}

// formatDocuments renders the server's documents as one status line.
func formatDocuments(docs []docapi.Summary) string {
	if len(docs) == 0 {
		return "No documents"
	}
	shown := docs
	if len(shown) > maxListedDocuments {
		shown = shown[:maxListedDocuments]
	}
	parts := make([]string, 0, len(shown))
	for _, d := range shown {
		parts = append(parts, fmt.Sprintf("%s %s", d.ID, d.Title))
	}
	line := "Documents: " + strings.Join(parts, " | ")
	if extra := len(docs) - len(shown); extra > 0 {
		line += fmt.Sprintf(" (+%d more)", extra)
	}
	return line
}

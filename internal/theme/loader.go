// internal/theme/loader.go
package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// TomlStyleDef is one style in a theme file. Nil fields inherit from Default.
type TomlStyleDef struct {
	Fg        *string `toml:"fg"`
	Bg        *string `toml:"bg"`
	Bold      *bool   `toml:"bold"`
	Italic    *bool   `toml:"italic"`
	Underline *bool   `toml:"underline"`
	Reverse   *bool   `toml:"reverse"`
}

type TomlTheme struct {
	Name   string                  `toml:"name"`
	IsDark bool                    `toml:"is_dark"`
	Styles map[string]TomlStyleDef `toml:"styles"`
}

// LoadThemeFromFile parses a TOML theme file.
func LoadThemeFromFile(filePath string) (*Theme, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file '%s': %w", filePath, err)
	}

	var tomlTheme TomlTheme
	metadata, err := toml.Decode(string(data), &tomlTheme)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML theme file '%s': %w", filePath, err)
	}

	if len(metadata.Undecoded()) > 0 {
		logger.Warnf("Theme '%s': Unrecognized keys in file '%s': %v", tomlTheme.Name, filePath, metadata.Undecoded())
	}

	if tomlTheme.Name == "" {
		tomlTheme.Name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
		logger.Debugf("Theme file '%s' missing 'name', using filename '%s'", filePath, tomlTheme.Name)
	}

	theme := &Theme{
		Name:   tomlTheme.Name,
		IsDark: tomlTheme.IsDark,
		Styles: make(map[string]tcell.Style),
	}

	baseStyle := tcell.StyleDefault
	if defaultTomlStyle, ok := tomlTheme.Styles["Default"]; ok {
		var parseErr error
		baseStyle, parseErr = convertTomlStyle(defaultTomlStyle, tcell.StyleDefault)
		if parseErr != nil {
			logger.Warnf("Theme '%s': Failed to parse 'Default' style, using tcell default as base: %v", theme.Name, parseErr)
			baseStyle = tcell.StyleDefault
		}
	}
	theme.Styles["Default"] = baseStyle

	for name, tomlStyle := range tomlTheme.Styles {
		if name == "Default" {
			continue
		}
		style, err := convertTomlStyle(tomlStyle, baseStyle)
		if err != nil {
			logger.Warnf("Theme '%s': Failed to parse style '%s', skipping: %v", theme.Name, name, err)
			continue
		}
		theme.Styles[name] = style
	}

	logger.Debugf("Successfully loaded theme '%s' from '%s'", theme.Name, filePath)
	return theme, nil
}

// convertTomlStyle applies a TOML definition on top of baseStyle.
func convertTomlStyle(tomlStyle TomlStyleDef, baseStyle tcell.Style) (tcell.Style, error) {
	style := baseStyle

	if tomlStyle.Fg != nil {
		color, err := parseColorString(*tomlStyle.Fg)
		if err != nil {
			return style, fmt.Errorf("invalid foreground color '%s': %w", *tomlStyle.Fg, err)
		}
		style = style.Foreground(color)
	}
	if tomlStyle.Bg != nil {
		color, err := parseColorString(*tomlStyle.Bg)
		if err != nil {
			return style, fmt.Errorf("invalid background color '%s': %w", *tomlStyle.Bg, err)
		}
		style = style.Background(color)
	}

	if tomlStyle.Bold != nil {
		style = style.Bold(*tomlStyle.Bold)
	}
	if tomlStyle.Italic != nil {
		style = style.Italic(*tomlStyle.Italic)
	}
	if tomlStyle.Underline != nil {
		style = style.Underline(*tomlStyle.Underline)
	}
	if tomlStyle.Reverse != nil {
		style = style.Reverse(*tomlStyle.Reverse)
	}
	return style, nil
}

// parseColorString accepts #rgb/#rrggbb hex, the keywords reset and default,
// or any colour name tcell knows.
func parseColorString(s string) (tcell.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return tcell.ColorDefault, fmt.Errorf("invalid hex color '%s': %w", s, err)
		}
		r, g, b := c.RGB255()
		return tcell.NewRGBColor(int32(r), int32(g), int32(b)), nil
	case s == "reset":
		return tcell.ColorReset, nil
	case s == "default":
		return tcell.ColorDefault, nil
	}
	if c := tcell.GetColor(s); c != tcell.ColorDefault {
		return c, nil
	}
	return tcell.ColorDefault, fmt.Errorf("unknown color format or name '%s'", s)
}

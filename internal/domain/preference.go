package domain

// Theme is the persisted light/dark preference.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// DefaultTheme is used when nothing has been stored yet.
const DefaultTheme = ThemeDark

// ParseTheme returns the theme for s, falling back to DefaultTheme.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), true
	}
	return DefaultTheme, false
}

// ExportBackground is the fixed background colour used when exporting a
// rendered section under this theme.
func (t Theme) ExportBackground() string {
	if t == ThemeLight {
		return "#f8fafc"
	}
	return "#0f172a"
}

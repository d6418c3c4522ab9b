package domain

// Theme UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// IsValid checks if the Theme value is valid.
func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Package model defines the domain models for FinTrack.
package model

// Setting keys.
const (
	SettingUser          = "user"
	SettingCurrency      = "currency"
	SettingTheme         = "theme"
	SettingNotifications = "notifications" // legacy single-reminder blob
)

// Default values applied when a field is absent or unreadable.
const (
	DefaultCategory = "Other"
	DefaultUserName = "Guest"
	DefaultTime     = "20:00"
	DefaultMessage  = "Remember to review today's transactions."
	DateLayout      = "2006-01-02"
)

// Variant identifies which client's defaults apply to settings reads.
type Variant string

// Client variants.
const (
	VariantWeb    Variant = "web"
	VariantMobile Variant = "mobile"
)

// Themes.
const (
	ThemeDark          = "dark"
	ThemeLight         = "light"
	ThemeOrange        = "orange"
	ThemeComplementary = "complementary"
)

// DefaultCurrency returns the currency used when none is stored.
func (v Variant) DefaultCurrency() string {
	if v == VariantMobile {
		return "INR"
	}
	return "USD"
}

// DefaultTheme returns the theme used when none is stored.
func (v Variant) DefaultTheme() string {
	if v == VariantMobile {
		return ThemeComplementary
	}
	return ThemeDark
}

// ResolveTheme maps a stored theme name to the variant's palette name.
// The mobile palette only knows "orange" (light) and "complementary" (dark).
func (v Variant) ResolveTheme(stored string) string {
	if v != VariantMobile {
		if stored == "" {
			return ThemeDark
		}
		return stored
	}
	switch stored {
	case ThemeLight, ThemeOrange:
		return ThemeOrange
	default:
		return ThemeComplementary
	}
}

// ToggleTheme returns the opposite theme in the variant's palette.
func (v Variant) ToggleTheme(current string) string {
	if v == VariantMobile {
		if current == ThemeOrange {
			return ThemeComplementary
		}
		return ThemeOrange
	}
	if current == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// ParseVariant converts a config string to a Variant, defaulting to web.
func ParseVariant(s string) Variant {
	if Variant(s) == VariantMobile {
		return VariantMobile
	}
	return VariantWeb
}

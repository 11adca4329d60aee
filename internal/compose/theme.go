package compose

import "strings"

// RGB is an 8-bit color triple.
type RGB struct {
	R, G, B int
}

// Theme pairs the two colors used for the cover's banded background
// gradient plus the ink color drawn over it.
type Theme struct {
	Name      string
	Primary   RGB
	Secondary RGB
	Ink       RGB
}

var themes = map[string]Theme{
	"classic": {
		Name:      "classic",
		Primary:   RGB{32, 42, 68},
		Secondary: RGB{96, 114, 156},
		Ink:       RGB{245, 242, 232},
	},
	"sunset": {
		Name:      "sunset",
		Primary:   RGB{150, 52, 48},
		Secondary: RGB{232, 150, 78},
		Ink:       RGB{252, 246, 235},
	},
	"meadow": {
		Name:      "meadow",
		Primary:   RGB{34, 72, 48},
		Secondary: RGB{126, 168, 112},
		Ink:       RGB{244, 248, 238},
	},
	"slate": {
		Name:      "slate",
		Primary:   RGB{44, 44, 48},
		Secondary: RGB{118, 120, 126},
		Ink:       RGB{240, 240, 242},
	},
}

const defaultTheme = "classic"

// ThemeByName resolves a theme identifier, falling back to the default for
// unknown or empty names.
func ThemeByName(name string) Theme {
	if theme, ok := themes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return theme
	}
	return themes[defaultTheme]
}

// gradientColor interpolates between the theme's primary and secondary
// colors. t runs 0..1 from the top of the sheet to the bottom.
func (t Theme) gradientColor(fraction float64) RGB {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	lerp := func(a, b int) int {
		return a + int(float64(b-a)*fraction)
	}
	return RGB{
		R: lerp(t.Primary.R, t.Secondary.R),
		G: lerp(t.Primary.G, t.Secondary.G),
		B: lerp(t.Primary.B, t.Secondary.B),
	}
}

package graphics

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// maxByte is the maximum value of a byte, used for color normalization.
const maxByte = 255.0

// Color is stored as ARGB (0xAARRGGBB).
type Color uint32

// RGBA constructs a Color from red, green, blue bytes and alpha (0-1).
func RGBA(r, g, b uint8, a float64) Color {
	return Color(uint32(alpha01ToByte(a))<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGBA8 constructs a Color from red, green, blue, alpha bytes (all 0-255).
func RGBA8(r, g, b, a uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGB constructs an opaque Color from red, green, blue bytes.
func RGB(r, g, b uint8) Color {
	return RGBA8(r, g, b, 0xFF)
}

// Components returns the red, green, blue and alpha bytes.
func (c Color) Components() (r, g, b, a uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c), uint8(c >> 24)
}

// Alpha returns the alpha component as a value from 0.0 (transparent) to 1.0 (opaque).
func (c Color) Alpha() float64 {
	return float64(uint8(c>>24)) / maxByte
}

// Array returns the wire form [r, g, b, a] with every channel 0-255.
func (c Color) Array() []any {
	r, g, b, a := c.Components()
	return []any{int(r), int(g), int(b), int(a)}
}

// String renders the color as "rgba(r, g, b, a)" with alpha in 0-1.
func (c Color) String() string {
	r, g, b, _ := c.Components()
	alpha := math.Round(c.Alpha()*1000) / 1000
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b, strconv.FormatFloat(alpha, 'f', -1, 64))
}

// alpha01ToByte converts a 0-1 alpha to 0-255 with proper rounding.
func alpha01ToByte(a float64) uint8 {
	return uint8(math.Round(clamp01(a) * 255))
}

// clamp01 clamps a value to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Common colors.
const (
	ColorTransparent = Color(0x00000000)
	ColorBlack       = Color(0xFF000000)
	ColorWhite       = Color(0xFFFFFFFF)
	ColorRed         = Color(0xFFFF0000)
	ColorGreen       = Color(0xFF008000)
	ColorBlue        = Color(0xFF0000FF)
)

var namedColors = map[string]Color{
	"transparent": ColorTransparent,
	"black":       ColorBlack,
	"silver":      RGB(192, 192, 192),
	"gray":        RGB(128, 128, 128),
	"white":       ColorWhite,
	"maroon":      RGB(128, 0, 0),
	"red":         ColorRed,
	"purple":      RGB(128, 0, 128),
	"fuchsia":     RGB(255, 0, 255),
	"green":       ColorGreen,
	"lime":        RGB(0, 255, 0),
	"olive":       RGB(128, 128, 0),
	"yellow":      RGB(255, 255, 0),
	"navy":        RGB(0, 0, 128),
	"blue":        ColorBlue,
	"teal":        RGB(0, 128, 128),
	"aqua":        RGB(0, 255, 255),
}

var (
	hexColor  = regexp.MustCompile(`^#([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	funcColor = regexp.MustCompile(`^rgba?\(\s*([0-9]+)\s*,\s*([0-9]+)\s*,\s*([0-9]+)\s*(?:,\s*([0-9]*\.?[0-9]+)\s*)?\)$`)
)

// ParseColor parses "#rgb", "#rgba", "#rrggbb", "#rrggbbaa", "rgb(r, g, b)",
// "rgba(r, g, b, a)" with alpha in 0-1, and the basic CSS color names.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, nil
	}
	if hexColor.MatchString(s) {
		return parseHexColor(s[1:]), nil
	}
	if m := funcColor.FindStringSubmatch(s); m != nil {
		if strings.HasPrefix(s, "rgba") != (m[4] != "") {
			return 0, fmt.Errorf("invalid color %q", s)
		}
		var ch [3]uint8
		for i := range ch {
			n, err := strconv.Atoi(m[i+1])
			if err != nil || n > 255 {
				return 0, fmt.Errorf("invalid color %q", s)
			}
			ch[i] = uint8(n)
		}
		alpha := 1.0
		if m[4] != "" {
			a, err := strconv.ParseFloat(m[4], 64)
			if err != nil || a > 1 {
				return 0, fmt.Errorf("invalid color %q", s)
			}
			alpha = a
		}
		return RGBA(ch[0], ch[1], ch[2], alpha), nil
	}
	return 0, fmt.Errorf("invalid color %q", s)
}

// parseHexColor expands a validated hex body of 3, 4, 6 or 8 digits.
func parseHexColor(hex string) Color {
	var r, g, b uint32
	a := uint32(255)

	switch len(hex) {
	case 3:
		parseHex(hex[0:1], &r)
		parseHex(hex[1:2], &g)
		parseHex(hex[2:3], &b)
		r, g, b = r*17, g*17, b*17
	case 4:
		parseHex(hex[0:1], &r)
		parseHex(hex[1:2], &g)
		parseHex(hex[2:3], &b)
		parseHex(hex[3:4], &a)
		r, g, b, a = r*17, g*17, b*17, a*17
	case 6:
		parseHex(hex[0:2], &r)
		parseHex(hex[2:4], &g)
		parseHex(hex[4:6], &b)
	case 8:
		parseHex(hex[0:2], &r)
		parseHex(hex[2:4], &g)
		parseHex(hex[4:6], &b)
		parseHex(hex[6:8], &a)
	}
	return RGBA8(uint8(r), uint8(g), uint8(b), uint8(a))
}

func parseHex(s string, val *uint32) {
	*val = 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		*val *= 16
		switch {
		case '0' <= c && c <= '9':
			*val += uint32(c - '0')
		case 'a' <= c && c <= 'f':
			*val += uint32(c-'a') + 10
		case 'A' <= c && c <= 'F':
			*val += uint32(c-'A') + 10
		}
	}
}

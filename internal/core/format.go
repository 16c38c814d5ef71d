package core

import (
	"fmt"
	"math"
)

// FormatFileSize renders a byte count as "1.5 KB" style text.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return fmt.Sprintf("%s %s", trimFloat(v), units[i])
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}

// HSL is a colour in hue/saturation/lightness form.
type HSL struct {
	H, S, L float64
}

func (c HSL) String() string {
	return fmt.Sprintf("hsl(%s, %s%%, %s%%)", trimFloat(c.H), trimFloat(c.S), trimFloat(c.L))
}

// Lighten raises lightness by percent, clamped to 100.
func (c HSL) Lighten(percent float64) HSL {
	c.L = math.Min(100, c.L+percent)
	return c
}

// Darken lowers lightness by percent, clamped to 0.
func (c HSL) Darken(percent float64) HSL {
	c.L = math.Max(0, c.L-percent)
	return c
}

// ParseHSL reads "hsl(h, s%, l%)".
func ParseHSL(s string) (HSL, error) {
	var c HSL
	if _, err := fmt.Sscanf(s, "hsl(%g, %g%%, %g%%)", &c.H, &c.S, &c.L); err != nil {
		return HSL{}, fmt.Errorf("parse hsl %q: %w", s, err)
	}
	return c, nil
}

// RainbowColors spreads count hues evenly around the wheel.
func RainbowColors(count int) []HSL {
	out := make([]HSL, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, HSL{H: float64(i) / float64(count) * 360, S: 85, L: 60})
	}
	return out
}

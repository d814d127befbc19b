// Package assets holds the embedded appearance catalog: named colors,
// known icons and the default category set.
package assets

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"fintrack/internal/core"
)

// DefaultIcon is used whenever an unknown icon name is requested.
const DefaultIcon = "circle"

// DefaultColor is the palette entry used when no color is given.
const DefaultColor = "gray"

//go:embed catalog.json
var catalogJSON []byte

type catalog struct {
	Colors     map[string]string `json:"colors"`
	Icons      []string          `json:"icons"`
	Categories []struct {
		Type  core.CategoryType `json:"type"`
		Name  string            `json:"name"`
		Icon  string            `json:"icon"`
		Color string            `json:"color"`
	} `json:"categories"`
}

var (
	cat     catalog
	iconSet map[string]bool
	hexRe   = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)
)

func init() {
	if err := json.Unmarshal(catalogJSON, &cat); err != nil {
		panic(fmt.Sprintf("assets: invalid catalog: %v", err))
	}
	iconSet = make(map[string]bool, len(cat.Icons))
	for _, name := range cat.Icons {
		iconSet[name] = true
	}
}

// ResolveColor maps a palette name or a hex string to "#RRGGBB".
// An empty input resolves to the default color.
func ResolveColor(nameOrHex string) (string, error) {
	s := strings.TrimSpace(nameOrHex)
	if s == "" {
		s = DefaultColor
	}
	if hex, ok := cat.Colors[strings.ToLower(s)]; ok {
		return hex, nil
	}
	if hexRe.MatchString(s) {
		return "#" + strings.ToUpper(strings.TrimPrefix(s, "#")), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidColor, nameOrHex)
}

// ColorNames lists the palette in alphabetical order.
func ColorNames() []string {
	names := make([]string, 0, len(cat.Colors))
	for name := range cat.Colors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func KnownIcon(name string) bool {
	return iconSet[name]
}

// IconFor returns name if it is a known icon, DefaultIcon otherwise.
func IconFor(name string) string {
	if KnownIcon(name) {
		return name
	}
	return DefaultIcon
}

// Icons returns a copy of the icon list.
func Icons() []string {
	out := make([]string, len(cat.Icons))
	copy(out, cat.Icons)
	return out
}

// DefaultCategories returns the seed categories with fresh ids. Display
// order restarts at zero for each type.
func DefaultCategories() []core.Category {
	out := make([]core.Category, 0, len(cat.Categories))
	order := map[core.CategoryType]int{}
	for _, c := range cat.Categories {
		color, err := ResolveColor(c.Color)
		if err != nil {
			color = cat.Colors[DefaultColor]
		}
		out = append(out, core.Category{
			ID:    core.NewID(),
			Type:  c.Type,
			Name:  c.Name,
			Icon:  IconFor(c.Icon),
			Color: color,
			Order: order[c.Type],
		})
		order[c.Type]++
	}
	return out
}

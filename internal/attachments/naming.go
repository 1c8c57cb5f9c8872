package attachments

import (
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// DefaultExt is used when the source name has no extension.
const DefaultExt = ".jpg"

// splitName returns the last path element of p without its extension, and
// the extension including the dot. Both separators are accepted since
// source paths may come from another platform.
func splitName(p string) (base, ext string) {
	name := lastElem(p)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i:]
	}
	return name, DefaultExt
}

func lastElem(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// cleanBase keeps ASCII letters, ASCII digits and CJK ideographs
// U+4E00..U+9FA5 and replaces every other rune with '_'.
func cleanBase(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 0x4E00 && r <= 0x9FA5:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// StoredName computes the managed file name for a source file. Normalized
// categories get {dateTag}_{category}_{cleanBase}_{unixMillis}{ext}; other
// categories keep the source file name. An empty logDate uses the local day
// of now.
func StoredName(sourcePath, category, logDate string, now time.Time) string {
	if !types.IsNormalizedCategory(category) {
		return lastElem(sourcePath)
	}
	base, ext := splitName(sourcePath)
	date, err := types.NormalizeDate(logDate)
	if err != nil {
		date = types.LocalDate(now)
	}
	return fmt.Sprintf("%s_%s_%s_%d%s", types.DateTag(date), category, cleanBase(base), now.UnixMilli(), ext)
}

// numberedName inserts _n before the extension of a kept source name.
func numberedName(name string, n int) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return fmt.Sprintf("%s_%d%s", name[:i], n, name[i:])
	}
	return fmt.Sprintf("%s_%d", name, n)
}

// ExtractCategory recovers the category from a stored name. The longest
// normalized category following the date segment wins; otherwise the
// second underscore-separated segment is returned, or "general" when the
// name has no such segment.
func ExtractCategory(name string) string {
	if cat, _, ok := parseNormalized(name); ok {
		return cat
	}
	parts := strings.Split(name, "_")
	if len(parts) >= 2 {
		return parts[1]
	}
	return types.CategoryGeneral
}

// ExtractOriginalName recovers the cleaned base name plus extension from a
// stored name. Names that do not follow the generated layout are returned
// unchanged.
func ExtractOriginalName(name string) string {
	if _, original, ok := parseNormalized(name); ok {
		return original
	}
	return name
}

// parseNormalized splits {dateTag}_{category}_{base}_{millis}{ext}.
func parseNormalized(name string) (category, original string, ok bool) {
	if len(name) < 9 || name[8] != '_' || !allDigits(name[:8]) {
		return "", "", false
	}
	rest := name[9:]

	category = ""
	for _, c := range types.NormalizedCategories {
		if strings.HasPrefix(rest, c+"_") && len(c) > len(category) {
			category = c
		}
	}
	if category == "" {
		return "", "", false
	}
	rest = rest[len(category)+1:]

	ext := ""
	if i := strings.LastIndex(rest, "."); i >= 0 {
		rest, ext = rest[:i], rest[i:]
	}
	i := strings.LastIndex(rest, "_")
	if i < 0 || !allDigits(rest[i+1:]) {
		return "", "", false
	}
	return category, rest[:i] + ext, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

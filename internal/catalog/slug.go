package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var trLower = cases.Lower(language.Turkish)

var asciiFold = strings.NewReplacer(
	"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
	"â", "a", "î", "i", "û", "u",
)

// foldTurkish lowercases with Turkish rules (I→ı, İ→i) and strips diacritics.
func foldTurkish(s string) string {
	return asciiFold.Replace(trLower.String(s))
}

// Slugify: "Ön Fren Balatası (CBR 250)" -> "on-fren-balatasi-cbr-250"
func Slugify(s string) string {
	folded := foldTurkish(strings.TrimSpace(s))

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug appends -2, -3... until no row of model other than excludeID uses the slug.
func uniqueSlug(db *gorm.DB, model any, base string, excludeID uint) (string, error) {
	if base == "" {
		base = "urun"
	}
	slug := base
	for i := 2; ; i++ {
		var count int64
		q := db.Model(model).Where("slug = ?", slug)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// searchPattern builds a LIKE pattern for a Turkish case-insensitive search.
// Wildcards in q match literally; use it with searchClause's ESCAPE.
func searchPattern(q string) string {
	return "%" + likeEscaper.Replace(foldTurkish(strings.TrimSpace(q))) + "%"
}

func searchClause(column string) string {
	return column + ` LIKE ? ESCAPE '\'`
}

func productSearchText(name, sku, brand string) string {
	return foldTurkish(strings.Join([]string{name, sku, brand}, " "))
}

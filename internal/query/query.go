// Package query turns a category into search text.
//
// Two rules live here and are deliberately kept apart. GenerateCategoryQuery
// is the enhancement engine used for previews and agent tools: it adds up to
// three of the category's keywords and prepends the category name. AppendKeywords is the
// plain concatenation the search controller applies before dispatch.
package query

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/curatorapp/curator-server/internal/domain"
)

const (
	// MaxEnhancementKeywords caps how many keywords GenerateCategoryQuery appends.
	MaxEnhancementKeywords = 3

	// minKeywordRunes is the exclusive lower bound on keyword length.
	minKeywordRunes = 2
)

// Enhancement describes what GenerateCategoryQuery did to a query.
type Enhancement struct {
	Query         string   `json:"query"`
	AddedKeywords []string `json:"added_keywords"`
	PrependedName bool     `json:"prepended_name"`
}

// GenerateCategoryQuery combines userQuery with category's name and keywords.
// A nil category returns userQuery unchanged.
func GenerateCategoryQuery(category *domain.Category, userQuery string) string {
	if category == nil {
		return userQuery
	}
	return Enhance(category, userQuery).Query
}

// Enhance is GenerateCategoryQuery with the individual steps reported.
//
// The category contributes its first three distinct keywords longer than two
// runes, compared case-insensitively. Each one that is not yet a
// case-insensitive substring of the query built so far is appended in order.
// Keywords already present still use up one of the three, so applying Enhance
// to its own output adds nothing. The name is then prepended unless the
// accumulated query already contains it.
func Enhance(category *domain.Category, userQuery string) Enhancement {
	q := strings.TrimSpace(userQuery)
	if category == nil {
		return Enhancement{Query: q, AddedKeywords: []string{}}
	}

	added := make([]string, 0, MaxEnhancementKeywords)
	for _, kw := range eligibleKeywords(category.Keywords) {
		if strings.Contains(fold(q), fold(kw)) {
			continue
		}
		q = joinNonEmpty(q, kw)
		added = append(added, kw)
	}

	out := Enhancement{AddedKeywords: added}
	name := strings.TrimSpace(category.Name)
	if name != "" && !strings.Contains(fold(q), fold(name)) {
		q = joinNonEmpty(name, q)
		out.PrependedName = true
	}
	out.Query = strings.TrimSpace(q)
	return out
}

// eligibleKeywords returns the first MaxEnhancementKeywords distinct keywords
// longer than minKeywordRunes, in their original order.
func eligibleKeywords(keywords []string) []string {
	out := make([]string, 0, MaxEnhancementKeywords)
	seen := make(map[string]struct{}, MaxEnhancementKeywords)
	for _, kw := range keywords {
		if len(out) == MaxEnhancementKeywords {
			break
		}
		kw = strings.TrimSpace(kw)
		if utf8.RuneCountInString(kw) <= minKeywordRunes {
			continue
		}
		key := fold(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// AppendKeywords appends every keyword, space separated, when there is at least one.
func AppendKeywords(q string, keywords []string) string {
	if len(keywords) == 0 {
		return q
	}
	return strings.TrimSpace(q + " " + strings.Join(keywords, " "))
}

// fold case-folds s. Casers are stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

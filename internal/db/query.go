package db

import (
	"fmt"
	"strconv"
	"strings"
)

// FT query syntax helpers shared by repositories that compose pre-filters.

// MatchAll is the FT query that matches every document.
const MatchAll = "*"

// TagAny matches documents whose tag field holds any of values.
func TagAny(field string, values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = EscapeTag(v)
	}
	return fmt.Sprintf("@%s:{%s}", field, strings.Join(escaped, " | "))
}

// NumericRange matches min <= field <= max. Bounds prefixed with "(" are exclusive; "" is unbounded.
func NumericRange(field, minBound, maxBound string) string {
	if minBound == "" {
		minBound = "-inf"
	}
	if maxBound == "" {
		maxBound = "+inf"
	}
	return fmt.Sprintf("@%s:[%s %s]", field, minBound, maxBound)
}

// Inclusive formats an inclusive numeric bound.
func Inclusive(v int64) string { return strconv.FormatInt(v, 10) }

// Exclusive formats an exclusive numeric bound.
func Exclusive(v int64) string { return "(" + strconv.FormatInt(v, 10) }

// And intersects non-empty clauses.
func And(clauses ...string) string {
	parts := nonEmpty(clauses)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Or unions non-empty clauses.
func Or(clauses ...string) string {
	parts := nonEmpty(clauses)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func nonEmpty(clauses []string) []string {
	out := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// EscapeTag escapes a TAG value for use inside {...}.
func EscapeTag(s string) string {
	return tagEscaper.Replace(s)
}

// EscapeQuery escapes user text for a TEXT clause.
func EscapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`.`, `\.`,
	`,`, `\,`,
)

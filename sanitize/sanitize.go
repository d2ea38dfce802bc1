// Package sanitize turns untrusted strings read out of memory into identifiers and
// type names that are safe to print as C++ declarations.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxIdentifierLength bounds the identifiers Identifier produces
const MaxIdentifierLength = 128

var (
	identRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	nonIdentRe  = regexp.MustCompile(`[^A-Za-z0-9_]`)
	underscores = regexp.MustCompile(`_+`)
	typeCharsRe = regexp.MustCompile(`^[A-Za-z0-9_:*&\[\]<>, ]+$`)
	letterRe    = regexp.MustCompile(`[A-Za-z]`)
	tokenRe     = regexp.MustCompile(`\s+|::|<|>|,|\[|\]|\*+|&+`)
	noiseRe     = regexp.MustCompile(`^[a-z]{1,3}[0-9a-f]{1,4}B$`)
)

// primitives are accepted verbatim as a whole type name
var primitives = map[string]bool{
	"bool": true, "char": true, "signed char": true, "unsigned char": true,
	"short": true, "unsigned short": true,
	"int": true, "unsigned int": true,
	"long": true, "unsigned long": true,
	"long long": true, "unsigned long long": true,
	"float": true, "double": true, "long double": true,
	"void": true, "void*": true,
}

// primitiveWords are the single tokens multi-word primitives split into
var primitiveWords = map[string]bool{
	"signed": true, "unsigned": true, "short": true, "long": true,
}

var qualifiers = map[string]bool{"const": true, "volatile": true}

var allowedPrefixes = []string{
	"hk", "hkp", "hkx", "hka", "hkcd", "hkai", "hkRef", "hkArray", "hkString",
	"std",
}

// Identifier makes a C++ identifier out of raw, or returns fallback when nothing
// usable remains.
func Identifier(raw, fallback string) string {
	if raw == "" {
		return fallback
	}

	clean := nonIdentRe.ReplaceAllString(raw, "_")
	clean = strings.Trim(underscores.ReplaceAllString(clean, "_"), "_")

	if clean != "" && clean[0] >= '0' && clean[0] <= '9' {
		clean = "_" + clean
	}

	if clean == "" || !identRe.MatchString(clean) {
		return fallback
	}

	if len(clean) > MaxIdentifierLength {
		clean = clean[:MaxIdentifierLength]
	}
	return clean
}

// IsNoiseArtifact matches short lowercase+hex strings ending in B (pm4B, xc4B)
// that show up where a real name pointer was expected.
func IsNoiseArtifact(s string) bool {
	return noiseRe.MatchString(s)
}

// IsPrimitive reports whether s names one of the accepted primitive types
func IsPrimitive(s string) bool {
	return primitives[strings.Join(strings.Fields(s), " ")]
}

func validTypeToken(tok string) bool {
	if primitives[tok] || primitiveWords[tok] || qualifiers[tok] {
		return true
	}
	if IsNoiseArtifact(tok) {
		return false
	}
	if !identRe.MatchString(tok) || len(tok) < 2 {
		return false
	}
	if tok[0] >= 'A' && tok[0] <= 'Z' {
		return true
	}
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

func plausibleTypeString(s string) bool {
	return typeCharsRe.MatchString(s) && letterRe.MatchString(s)
}

// TypeName keeps a readable C++ type name (namespaces, templates, pointers and
// references allowed) or returns fallback. One bad token rejects the whole string.
func TypeName(raw, fallback string) string {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return fallback
	}
	if primitives[s] {
		return s
	}
	if !plausibleTypeString(s) {
		return fallback
	}

	var out strings.Builder
	last := 0
	for _, loc := range tokenRe.FindAllStringIndex(s, -1) {
		if tok := s[last:loc[0]]; tok != "" {
			if !validTypeToken(tok) {
				return fallback
			}
			out.WriteString(tok)
		}
		// separators, whitespace and runs of * or & are kept as they are
		out.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	if tok := s[last:]; tok != "" {
		if !validTypeToken(tok) {
			return fallback
		}
		out.WriteString(tok)
	}

	result := strings.TrimSpace(out.String())
	if result == "" {
		return fallback
	}
	return result
}

package util

import "strings"

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SymbolSet builds a lookup set from a list of tickers, normalising each
// and skipping blanks. A nil result means "no restriction".
func SymbolSet(symbols []string) map[string]struct{} {
	var set map[string]struct{}
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(symbols))
		}
		set[s] = struct{}{}
	}
	return set
}

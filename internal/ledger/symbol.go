package ledger

import (
	"regexp"
	"strings"
)

// SymbolPattern matches a ticker symbol before normalization.
var SymbolPattern = regexp.MustCompile(`^[A-Za-z0-9]{3,6}$`)

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ParseSymbol returns the normalized symbol, or false when the trimmed input
// is not 3 to 6 ASCII letters or digits.
func ParseSymbol(symbol string) (string, bool) {
	trimmed := strings.TrimSpace(symbol)
	if !SymbolPattern.MatchString(trimmed) {
		return "", false
	}
	return strings.ToUpper(trimmed), true
}

package tokens

import "strings"

const symbolPrefix = "CC_"

// DeriveTokenSymbol builds a token symbol from a project type, e.g.
// "reforestation" becomes "CC_REF". Types shorter than three characters are
// used as-is.
func DeriveTokenSymbol(projectType string) string {
	suffix := strings.ToUpper(projectType)
	if len(suffix) > 3 {
		suffix = suffix[:3]
	}
	return symbolPrefix + suffix
}

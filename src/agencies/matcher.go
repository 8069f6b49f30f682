package agencies

import (
	"strings"

	"github.com/betagouv/assistant-declaration/src/models"
)

// MatchSacemAgency returns the SACEM delegation covering a postal code.
// Prefixes are compared against the start of the code and the longest match
// wins, so "751" (Paris) beats "75" when both are present. The second return
// value is false when no agency covers the code.
func MatchSacemAgency(agencies []models.SacemAgency, postalCode string) (models.SacemAgency, bool) {
	var best models.SacemAgency
	bestLen := -1
	for _, agency := range agencies {
		for _, prefix := range agency.MatchingFrenchPostalCodes {
			if strings.HasPrefix(postalCode, prefix) && len(prefix) > bestLen {
				best = agency
				bestLen = len(prefix)
			}
		}
	}
	return best, bestLen >= 0
}

// MatchSacdAgency returns the SACD agency covering a postal code. SACD maps
// full five-digit codes, so the match is exact.
func MatchSacdAgency(agencies []models.SacdAgency, postalCode string) (models.SacdAgency, bool) {
	for _, agency := range agencies {
		for _, code := range agency.MatchingFrenchPostalCodes {
			if code == postalCode {
				return agency, true
			}
		}
	}
	return models.SacdAgency{}, false
}

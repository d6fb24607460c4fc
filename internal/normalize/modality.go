package normalize

import (
	"strings"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/models"
)

// deriveModality resolves the freight-payment modality through a priority
// chain: payer-role code, then a named value-component token, then a
// free-text observation token, then the CIF fallback. First match wins,
// even when later signals disagree.
func deriveModality(payerRole string, componentNames []string, observation string) models.FreightModality {
	// toma codes 0/1 are sender side, 2/3 recipient side; 4 (third
	// party) carries no payer signal
	switch payerRole {
	case "0", "1":
		return models.ModalityCIF
	case "2", "3":
		return models.ModalityFOB
	}

	for _, name := range componentNames {
		if m, ok := modalityToken(name); ok {
			return m
		}
	}

	if m, ok := modalityToken(observation); ok {
		return m
	}

	return models.ModalityCIF
}

// modalityToken scans free text for a CIF/FOB token
func modalityToken(text string) (models.FreightModality, bool) {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "FOB"):
		return models.ModalityFOB, true
	case strings.Contains(upper, "CIF"):
		return models.ModalityCIF, true
	}
	return "", false
}

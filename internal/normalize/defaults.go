package normalize

// Sentinel defaults for structurally required fields. Keeping the whole
// defaulting policy in one table makes it auditable and testable apart
// from the traversal logic. Keys are "<section>.<field>" using the XML
// field names.
var (
	decimalDefaults = map[string]float64{
		"vPrest.vTPrest":  0.01,
		"vPrest.vRec":     0.01,
		"infCarga.vCarga": 0.01,
		"tot.vCarga":      0.01,
	}

	intDefaults = map[string]int{
		"ide.nCT":  0,
		"ide.nMDF": 0,
	}

	stringDefaults = map[string]string{
		"infCarga.proPred": "NAO INFORMADO",
		"ide.natOp":        "NAO INFORMADO",
	}
)

func defaultDecimal(section, field string) float64 {
	if v, ok := decimalDefaults[section+"."+field]; ok {
		return v
	}
	return 0
}

func defaultInt(section, field string) int {
	if v, ok := intDefaults[section+"."+field]; ok {
		return v
	}
	return 0
}

func defaultString(section, field string) string {
	if v, ok := stringDefaults[section+"."+field]; ok {
		return v
	}
	return ""
}

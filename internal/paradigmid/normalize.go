package paradigmid

import "strings"

// Normalize canonicalizes paradigm names and legacy task aliases.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	if canonical, ok := normalizeKnownAlias(normalized); ok {
		return canonical
	}
	return normalized
}

func normalizeKnownAlias(normalized string) (string, bool) {
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalParadigmName(candidate); ok {
			return canonical, true
		}
	}
	return "", false
}

func aliasCandidates(normalized string) []string {
	candidate := strings.TrimPrefix(normalized, "paradigm-")
	if candidate == normalized {
		candidate = strings.TrimPrefix(candidate, "paradigm")
	}
	candidate = strings.Trim(candidate, "-")

	candidates := []string{normalized}
	if candidate != "" && candidate != normalized {
		candidates = append(candidates, candidate)
	}

	trimmedCandidate := trimTaskSuffix(candidate)
	if trimmedCandidate != "" && trimmedCandidate != candidate {
		candidates = append(candidates, trimmedCandidate)
	}

	trimmedNormalized := trimTaskSuffix(normalized)
	if trimmedNormalized != "" &&
		trimmedNormalized != normalized &&
		trimmedNormalized != candidate &&
		trimmedNormalized != trimmedCandidate {
		candidates = append(candidates, trimmedNormalized)
	}
	return candidates
}

func trimTaskSuffix(value string) string {
	switch {
	case strings.HasSuffix(value, "-task"):
		return strings.TrimSuffix(value, "-task")
	case strings.HasSuffix(value, "task") && !strings.Contains(value, "-"):
		return strings.TrimSuffix(value, "task")
	default:
		return value
	}
}

func canonicalParadigmName(alias string) (string, bool) {
	switch alias {
	case "rating":
		return "rating", true
	case "detection":
		return "detection", true
	}

	compact := strings.ReplaceAll(alias, "-", "")
	switch compact {
	case "rating", "likert", "vas", "continuousrating":
		return "rating", true
	case "detection", "detect", "rt", "speeded", "speededrt", "speededdetection":
		return "detection", true
	default:
		return "", false
	}
}

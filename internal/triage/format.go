package triage

// normalizeUrgency validates a model-supplied level, falling back to keyword
// parsing over the model's own prose when the field is absent or unrecognized.
func normalizeUrgency(out *analysisOutcome) UrgencyLevel {
	switch UrgencyLevel(out.UrgencyLevel) {
	case UrgencyEmergency, UrgencyUrgent, UrgencySemiUrgent, UrgencyNonUrgent:
		return UrgencyLevel(out.UrgencyLevel)
	}
	return ParseUrgency(out.RecommendedAction + " " + out.Reasoning)
}

// formatResult assembles the final Result from the completion analysis, the
// full conversation text, and the sources consulted during the session.
//
// The deterministic safety floor is applied here and only here: if the
// conversation contains any emergency indicator, the urgency never lands
// below URGENT, whatever the model said. A model verdict of EMERGENCY is
// always kept.
func formatResult(out *analysisOutcome, convo string, sources []Source) *Result {
	level := normalizeUrgency(out)

	warningSigns := out.WarningSigns
	if indicators := DetectEmergencyIndicators(convo); len(indicators) > 0 {
		if level != UrgencyEmergency && level != UrgencyUrgent {
			level = UrgencyUrgent
		}
		for _, ind := range indicators {
			if !containsString(warningSigns, ind) {
				warningSigns = append(warningSigns, ind)
			}
		}
	}

	action := out.RecommendedAction
	if action == "" {
		action = defaultActions[level]
	}
	timeframe := out.Timeframe
	if timeframe == "" {
		timeframe = defaultTimeframes[level]
	}
	reasoning := out.Reasoning
	if reasoning == "" {
		reasoning = "Assessment based on the information provided during the conversation."
	}

	return &Result{
		UrgencyLevel:       level,
		RecommendedAction:  action,
		Timeframe:          timeframe,
		Reasoning:          reasoning,
		MissingInformation: out.MissingInformation,
		WarningSigns:       warningSigns,
		Sources:            sources,
		Disclaimer:         Disclaimer,
	}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

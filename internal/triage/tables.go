package triage

import (
	"regexp"
	"strings"
)

// UrgencyTableVersion identifies the revision of the keyword tables below so
// classification changes stay traceable. Bump on any entry change.
const UrgencyTableVersion = 4

// emergencyIndicators are phrases that clamp the computed urgency to at
// least URGENT regardless of model output. This is the deterministic safety
// floor: one rule, applied at finalization, independent of the model.
var emergencyIndicators = []string{
	"can't breathe",
	"cannot breathe",
	"can not breathe",
	"not breathing",
	"struggling to breathe",
	"chest pressure",
	"chest tightness",
	"crushing chest pain",
	"pain radiating",
	"radiating to my arm",
	"radiating to left arm",
	"loss of consciousness",
	"unconscious",
	"unresponsive",
	"seizure",
	"severe bleeding",
	"bleeding won't stop",
	"coughing up blood",
	"blue lips",
	"unequal pupils",
	"face drooping",
	"slurred speech",
	"overdose",
	"suicidal",
	"anaphylaxis",
	"throat closing",
}

// severityMaxPattern matches a self-rated severity at the top of the 0-10
// scale, e.g. "10/10", "10 out of 10", "ten out of ten".
var severityMaxPattern = regexp.MustCompile(`(?i)\b(10\s*(/|out of)\s*10|ten out of ten)\b`)

// DetectEmergencyIndicators returns the indicator phrases present in text,
// case-insensitively. A maximum self-rated severity counts as an indicator.
func DetectEmergencyIndicators(text string) []string {
	low := strings.ToLower(text)
	var found []string
	for _, phrase := range emergencyIndicators {
		if strings.Contains(low, phrase) {
			found = append(found, phrase)
		}
	}
	if severityMaxPattern.MatchString(text) {
		found = append(found, "severity rated 10/10")
	}
	return found
}

// urgencyKeywords maps free-text urgency mentions to levels. ParseUrgency
// scans in precedence order: EMERGENCY beats URGENT beats SEMI_URGENT beats
// NON_URGENT; no match at all yields UNKNOWN.
var urgencyKeywords = []struct {
	Level UrgencyLevel
	Words []string
}{
	{UrgencyEmergency, []string{"emergency", "call 911", "life-threatening", "immediately", "ambulance"}},
	{UrgencyUrgent, []string{"urgent", "within hours", "prompt attention", "same-day emergency"}},
	{UrgencySemiUrgent, []string{"semiurgent", "same day", "today", "soon"}},
	{UrgencyNonUrgent, []string{"nonurgent", "routine", "self-care", "home care", "days"}},
}

// compoundNormalizer collapses compound urgency mentions before the keyword
// scan so "non-urgent" and "semi-urgent" cannot match the bare URGENT entry.
var compoundNormalizer = strings.NewReplacer(
	"non-urgent", "nonurgent",
	"non urgent", "nonurgent",
	"semi-urgent", "semiurgent",
	"semi urgent", "semiurgent",
)

// ParseUrgency maps free text to an urgency level by keyword precedence.
func ParseUrgency(text string) UrgencyLevel {
	low := compoundNormalizer.Replace(strings.ToLower(text))
	for _, entry := range urgencyKeywords {
		for _, w := range entry.Words {
			if strings.Contains(low, w) {
				return entry.Level
			}
		}
	}
	return UrgencyUnknown
}

// defaultActions provides a recommended action when the model supplied none.
var defaultActions = map[UrgencyLevel]string{
	UrgencyEmergency:  "Call emergency services now.",
	UrgencyUrgent:     "Seek medical care within the next few hours, at urgent care or an emergency department.",
	UrgencySemiUrgent: "Arrange to be seen by a clinician today.",
	UrgencyNonUrgent:  "Schedule a routine appointment with your primary care provider.",
	UrgencyUnknown:    "Contact a healthcare provider to discuss your symptoms.",
}

// defaultTimeframes mirrors defaultActions for the care timeframe.
var defaultTimeframes = map[UrgencyLevel]string{
	UrgencyEmergency:  "Immediately",
	UrgencyUrgent:     "Within hours",
	UrgencySemiUrgent: "Today",
	UrgencyNonUrgent:  "Within the coming days",
	UrgencyUnknown:    "As soon as practical",
}

// Disclaimer is attached verbatim to every finalized result.
const Disclaimer = "This is an automated triage recommendation, not a medical diagnosis. " +
	"Always seek professional medical advice for health concerns."

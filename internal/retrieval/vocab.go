package retrieval

// VocabVersion identifies the revision of the lookup tables below. Bump it
// whenever an entry is added or removed so retrieval changes are traceable.
const VocabVersion = 2

// synonyms maps lay phrases to the clinical terms used by the reference
// corpus. Matching is case-insensitive on the raw utterance; expansions are
// appended after the original text, never substituted.
var synonyms = map[string][]string{
	"heart attack":        {"myocardial infarction"},
	"high blood pressure": {"hypertension"},
	"stroke":              {"cerebrovascular accident"},
	"can't breathe":       {"dyspnea", "respiratory distress"},
	"cannot breathe":      {"dyspnea", "respiratory distress"},
	"shortness of breath": {"dyspnea"},
	"high fever":          {"pyrexia", "elevated body temperature"},
	"fever":               {"pyrexia"},
	"throwing up":         {"vomiting", "emesis"},
	"stomach ache":        {"abdominal pain"},
	"belly pain":          {"abdominal pain"},
	"passing out":         {"syncope", "loss of consciousness"},
	"fainted":             {"syncope"},
	"head injury":         {"traumatic brain injury"},
	"racing heart":        {"palpitations", "tachycardia"},
	"swelling":            {"edema"},
}

// entityVocabulary is the fixed keyword vocabulary used for entity-aware
// query augmentation. This is a lightweight lexical match, not NLP: a term
// found in prior conversation turns is appended to the query so later turns
// retrieve context for the whole complaint, not just the latest message.
var entityVocabulary = map[string][]string{
	"symptom": {
		"fever", "cough", "nausea", "vomiting", "dizziness", "headache",
		"fatigue", "rash", "sweating", "palpitations", "chest pain",
		"shortness of breath", "abdominal pain", "bleeding", "seizure",
		"confusion", "numbness", "weakness",
	},
	"body_part": {
		"chest", "head", "arm", "leg", "abdomen", "back", "throat",
		"eye", "ear", "neck",
	},
	"onset": {
		"sudden", "gradual", "minutes", "hours", "days", "weeks",
	},
}

// Package triage runs grounded medical triage conversations. A session is a
// multi-turn dialogue with a patient: each turn retrieves reference material,
// asks the model for the next question, and checks whether enough is known to
// assign an urgency level. Sessions finalize exactly once, either when the
// completion analysis allows it or when the turn ceiling forces it, and a
// deterministic keyword floor guarantees emergency language is never triaged
// below URGENT.
package triage

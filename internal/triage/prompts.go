package triage

import (
	"fmt"
	"strings"
)

const (
	// replyMaxTokens bounds a conversational reply.
	replyMaxTokens = 1024

	// analysisMaxTokens bounds the structured completion check.
	analysisMaxTokens = 1024
)

const systemPromptBase = `You are a medical triage assistant conducting a structured intake conversation.

Rules you must follow:
- Never diagnose. Your job is to assess urgency, not to name conditions.
- Classify urgency using exactly one of: EMERGENCY, URGENT, SEMI_URGENT, NON_URGENT.
- Ground your assessment in the reference material provided below when it is relevant. Do not invent clinical facts.
- Ask exactly one focused question per turn. Prefer questions about onset, severity, location, and associated symptoms.
- If the patient describes anything immediately life-threatening, say so plainly and advise calling emergency services.
- Be calm, clear, and brief. Do not use medical jargon without explaining it.`

// buildSystemPrompt assembles the per-turn system instruction: the fixed
// policy, the patient context, and whatever reference material this turn's
// retrieval produced. It is rebuilt every turn so the grounding tracks the
// conversation.
func buildSystemPrompt(p PatientContext, contextBlock string) string {
	var sb strings.Builder
	sb.WriteString(systemPromptBase)

	sb.WriteString("\n\nPatient information:\n")
	if p.Name != "" {
		fmt.Fprintf(&sb, "- Name: %s\n", p.Name)
	}
	if p.Age > 0 {
		fmt.Fprintf(&sb, "- Age: %d\n", p.Age)
	}
	if p.Gender != "" {
		fmt.Fprintf(&sb, "- Gender: %s\n", p.Gender)
	}
	if p.MedicalHistory != "" {
		fmt.Fprintf(&sb, "- Medical history: %s\n", p.MedicalHistory)
	}
	fmt.Fprintf(&sb, "- Chief complaint: %s\n", p.ChiefComplaint)

	if contextBlock != "" {
		sb.WriteString("\nReference material:\n")
		sb.WriteString(contextBlock)
	}
	return sb.String()
}

const analysisSystemPrompt = `You review a medical triage conversation and decide whether enough information has been gathered to assign an urgency level.

Respond with a single JSON object and nothing else:
{
  "can_complete": true or false,
  "urgency_level": "EMERGENCY" | "URGENT" | "SEMI_URGENT" | "NON_URGENT",
  "recommended_action": "what the patient should do",
  "timeframe": "how soon they should act",
  "reasoning": "a short explanation of the assessment",
  "missing_information": ["questions still unanswered, if any"],
  "warning_signs": ["symptoms that should prompt immediate escalation"]
}

Set can_complete to true only when onset, severity, and associated symptoms are established, or when the situation is clearly an emergency.`

// buildAnalysisPrompt renders the conversation transcript for the completion
// check. The analysis model sees the dialogue as data, not as its own chat.
func buildAnalysisPrompt(s *Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chief complaint: %s\n\nConversation:\n", s.Patient.ChiefComplaint)
	for _, m := range s.Messages {
		switch m.Role {
		case RoleUser:
			sb.WriteString("Patient: ")
		case RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// openingQuestionFallback is used when the model cannot produce an opening
// question; the session still starts.
func openingQuestionFallback(chiefComplaint string) string {
	return fmt.Sprintf(
		"I understand you're experiencing %s. When did this start, and how severe is it right now?",
		chiefComplaint,
	)
}

// replyFallback is used when the model cannot produce a conversational
// reply mid-session.
const replyFallback = "I'm sorry, I'm having trouble responding right now. " +
	"Could you tell me more about your symptoms, and if anything feels severe or is getting worse, " +
	"please seek medical care directly."

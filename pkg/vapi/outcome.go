package vapi

// Call outcome values shared with the call log store.
const (
	OutcomeAnswered     = "ANSWERED"
	OutcomeVoicemail    = "VOICEMAIL"
	OutcomeNoAnswer     = "NO_ANSWER"
	OutcomeBusy         = "BUSY"
	OutcomeDisconnected = "DISCONNECTED"
)

// MapOutcome translates a provider ended-reason into an internal call
// outcome. Unknown reasons map to DISCONNECTED so reconciliation always
// lands on a terminal outcome.
func MapOutcome(endedReason string) string {
	switch endedReason {
	case "completed", "customer-ended-call", "assistant-ended-call":
		return OutcomeAnswered
	case "voicemail":
		return OutcomeVoicemail
	case "no-answer", "customer-did-not-answer":
		return OutcomeNoAnswer
	case "busy", "customer-busy":
		return OutcomeBusy
	default:
		return OutcomeDisconnected
	}
}

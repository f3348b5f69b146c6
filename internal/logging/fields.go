package logging

// Structured field keys shared by every vinscan logger.
const (
	FieldComponent     = "component"
	FieldSessionID     = "session_id"
	FieldSource        = "source"
	FieldCorrelationID = "correlation_id"

	// FieldEventType classifies a line for log queries, e.g.
	// event_type=candidate_rejected.
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"

	FieldReason           = "reason"
	FieldToken            = "token"
	FieldConfidence       = "confidence"
	FieldDecisionVIN      = "decision_vin"
	FieldDecisionEvidence = "decision_evidence"
	FieldDecisionMean     = "decision_mean_confidence"
)

// Event types.
const (
	EventCandidateRejected = "candidate_rejected"
	EventCandidateAccepted = "candidate_accepted"
	EventDecisionEmitted   = "decision_emitted"
	EventSessionCancelled  = "session_cancelled"
	EventSinkFailed        = "decision_sink_failed"
)

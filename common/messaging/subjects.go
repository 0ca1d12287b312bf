package messaging

// Subject names follow the pattern {domain}.{resource}.{qualifier}.
const (
	// SubjectLeadOutcomes is the prefix for delivery outcome messages.
	// Append .{status} for a specific outcome (see OutcomeSubject).
	SubjectLeadOutcomes = "leads.responses"

	// SubjectLeadOutcomesAll matches every outcome subject.
	SubjectLeadOutcomesAll = SubjectLeadOutcomes + ".>"
)

// Headers attached to relayed outcome messages.
const (
	HeaderLeadID = "Leadgate-Lead-Id"
	HeaderSystem = "Leadgate-System"
	HeaderStatus = "Leadgate-Status"
)

// OutcomeSubject returns the subject for outcomes with the given status.
// Example: leads.responses.success
func OutcomeSubject(status string) string {
	return SubjectLeadOutcomes + "." + status
}

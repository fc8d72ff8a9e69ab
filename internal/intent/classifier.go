// Package intent derives the initial intent label for a trigger event.
package intent

import (
	"strings"

	"github.com/carelane/orchestrator/internal/domain"
)

// keywordRule maps a set of keywords to an intent. Rules are evaluated in
// order; the first set with any keyword present in the text wins.
type keywordRule struct {
	keywords []string
	label    domain.Intent
}

var smsRules = []keywordRule{
	{[]string{"cancel", "reschedule", "move"}, domain.IntentScheduleChange},
	{[]string{"confirm", "yes"}, domain.IntentAppointmentConfirm},
	{[]string{"bill", "pay", "charge", "insurance"}, domain.IntentBillingInquiry},
}

// Classify derives the initial intent from a trigger's type and payload.
// Pure function: no side effects, no I/O. The label seeds routing; a
// capability may later refine it.
func Classify(trigger domain.TriggerType, payload domain.TriggerPayload) domain.Intent {
	switch trigger {
	case domain.TriggerInboundCall:
		if payload.Intent != "" {
			return domain.Intent(payload.Intent)
		}
		return domain.IntentAppointmentRequest

	case domain.TriggerInboundSMS:
		text := strings.ToLower(payload.Text)
		for _, rule := range smsRules {
			for _, kw := range rule.keywords {
				if strings.Contains(text, kw) {
					return rule.label
				}
			}
		}
		return domain.IntentGeneralInquiry

	case domain.TriggerManual:
		if payload.Intent != "" {
			return domain.Intent(payload.Intent)
		}
		return domain.IntentManual

	case domain.TriggerScheduledJob:
		if payload.JobType != "" {
			return domain.Intent(payload.JobType)
		}
		return domain.IntentRecallCampaign

	default:
		return domain.IntentUnknown
	}
}

package models

// Intent names supported by the hub. The set is closed: the classifier only
// ever returns one of these or the literal "unknown".
const (
	IntentPricing    = "pricing"
	IntentCheckin    = "checkin"
	IntentCleaning   = "cleaning"
	IntentUpsell     = "upsell"
	IntentMarketing  = "marketing"
	IntentCRM        = "crm"
	IntentConversion = "conversion"
	IntentRevenue    = "revenue"
	IntentBookingFix = "bookingfix"
	IntentSupport    = "support"
	IntentBooking    = "booking"
	IntentReport     = "report"
	IntentInsight    = "insight"
	IntentFAQ        = "faq"
	IntentSecurity   = "security"
	IntentAlert      = "alert"
	IntentAutopilot  = "autopilot"
	IntentContext    = "context"
	IntentFeedback   = "feedback"
	IntentEvent      = "event"
	IntentFollowup   = "followup"

	// IntentUnknown is the classifier's fallback. It is not a member of the
	// valid set and cannot be dispatched.
	IntentUnknown = "unknown"
)

// ValidIntents enumerates every dispatchable intent.
var ValidIntents = []string{
	IntentPricing, IntentCheckin, IntentCleaning, IntentUpsell,
	IntentMarketing, IntentCRM, IntentConversion, IntentRevenue,
	IntentBookingFix, IntentSupport, IntentBooking, IntentReport,
	IntentInsight, IntentFAQ, IntentSecurity, IntentAlert,
	IntentAutopilot, IntentContext, IntentFeedback, IntentEvent,
	IntentFollowup,
}

var validIntentSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(ValidIntents))
	for _, in := range ValidIntents {
		s[in] = struct{}{}
	}
	return s
}()

// IsValidIntent reports whether name is a member of the closed intent set.
func IsValidIntent(name string) bool {
	_, ok := validIntentSet[name]
	return ok
}

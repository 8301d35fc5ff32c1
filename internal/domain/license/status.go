package license

// StatusForSubscription reduces a Stripe subscription status to a license
// status. The billing platform is authoritative over subscription health;
// this is a pure mapping with no dependence on the previously stored status.
// Unrecognized values fail toward reduced access, never toward active.
func StatusForSubscription(subscriptionStatus string) Status {
	switch subscriptionStatus {
	case "trialing", "active":
		return StatusActive
	case "past_due", "unpaid", "incomplete", "incomplete_expired":
		return StatusSuspended
	case "canceled":
		return StatusCanceled
	default:
		return StatusSuspended
	}
}

package model

// Metadata keys written onto checkout sessions and subscriptions so that
// webhook payloads can be mapped back to an order.
const (
	MetaOrderID                 = "orderId"
	MetaHostingTier             = "hostingTier"
	MetaIncludesOneTimeService  = "includesOneTimeService"
	MetaOneTimeServiceRemovedAt = "oneTimeServiceRemovedAt"
	MetaLineItemRole            = "role"

	NoHostingTier = "none"
)

// Values of MetaIncludesOneTimeService.
const (
	OneTimeServicePending = "true"
	OneTimeServiceRemoved = "removed"
)

// Values of MetaLineItemRole on checkout product data.
const (
	RoleOneTimeService   = "one_time_service"
	RoleRecurringHosting = "recurring_hosting"
)

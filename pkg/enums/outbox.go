package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateConnection          OutboxAggregateType = "connection"
	AggregateConnectionProfile   OutboxAggregateType = "connection_profile"
	AggregateProduct             OutboxAggregateType = "product"
	AggregateContributionRequest OutboxAggregateType = "contribution_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateConnection,
	AggregateConnectionProfile,
	AggregateProduct,
	AggregateContributionRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventConnectionInitiated     OutboxEventType = "connection_initiated"
	EventConnectionInviteRequest OutboxEventType = "connection_invite_requested"
	EventConnectionLinked        OutboxEventType = "connection_linked"
	EventConnectionResponded     OutboxEventType = "connection_responded"
	EventConnectionReinvited     OutboxEventType = "connection_reinvited"
	EventConnectionSuspended     OutboxEventType = "connection_suspended"
	EventProfileUpdated          OutboxEventType = "connection_profile_updated"
	EventProductCreated          OutboxEventType = "product_created"
	EventContributionAssigned    OutboxEventType = "contribution_assigned"
	EventContributionTransition  OutboxEventType = "contribution_transitioned"
	EventContributionDraftSaved  OutboxEventType = "contribution_draft_saved"
	EventContributionReviewed    OutboxEventType = "contribution_reviewed"
	EventContributionCommented   OutboxEventType = "contribution_commented"
)

var validOutboxEventTypes = []OutboxEventType{
	EventConnectionInitiated,
	EventConnectionInviteRequest,
	EventConnectionLinked,
	EventConnectionResponded,
	EventConnectionReinvited,
	EventConnectionSuspended,
	EventProfileUpdated,
	EventProductCreated,
	EventContributionAssigned,
	EventContributionTransition,
	EventContributionDraftSaved,
	EventContributionReviewed,
	EventContributionCommented,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}

// OutboxDLQErrorReason records why the publisher dead-lettered an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains(validOutboxDLQErrorReasons, r)
}

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parse(value, validOutboxDLQErrorReasons, "dlq error reason")
}

package enums

import (
	"fmt"
	"slices"
)

// RequestStatus tracks a contribution request work-order.
type RequestStatus string

const (
	RequestStatusSent             RequestStatus = "SENT"
	RequestStatusInProgress       RequestStatus = "IN_PROGRESS"
	RequestStatusSubmitted        RequestStatus = "SUBMITTED"
	RequestStatusChangesRequested RequestStatus = "CHANGES_REQUESTED"
	RequestStatusCompleted        RequestStatus = "COMPLETED"
	RequestStatusDeclined         RequestStatus = "DECLINED"
	RequestStatusCancelled        RequestStatus = "CANCELLED"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusSent,
	RequestStatusInProgress,
	RequestStatusSubmitted,
	RequestStatusChangesRequested,
	RequestStatusCompleted,
	RequestStatusDeclined,
	RequestStatusCancelled,
}

// ActiveRequestStatuses lists every non-terminal request status.
var ActiveRequestStatuses = []RequestStatus{
	RequestStatusSent,
	RequestStatusInProgress,
	RequestStatusSubmitted,
	RequestStatusChangesRequested,
}

// RequestStatuses returns every known status in lifecycle order.
func RequestStatuses() []RequestStatus {
	return slices.Clone(validRequestStatuses)
}

// String implements fmt.Stringer.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known RequestStatus.
func (s RequestStatus) IsValid() bool {
	return slices.Contains(validRequestStatuses, s)
}

// IsTerminal reports whether no further transition may leave this status.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusCompleted, RequestStatusDeclined, RequestStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseRequestStatus converts raw input into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	return parse(value, validRequestStatuses, "request status")
}

// RequestAction is a supplier-side workflow action.
type RequestAction string

const (
	RequestActionAccept  RequestAction = "accept"
	RequestActionSubmit  RequestAction = "submit"
	RequestActionDecline RequestAction = "decline"
)

// ParseRequestAction converts raw input into a RequestAction.
func ParseRequestAction(value string) (RequestAction, error) {
	switch RequestAction(value) {
	case RequestActionAccept, RequestActionSubmit, RequestActionDecline:
		return RequestAction(value), nil
	}
	return "", fmt.Errorf("invalid request action %q", value)
}

// ReviewAction is a brand-side decision on a submitted version.
type ReviewAction string

const (
	ReviewActionApprove        ReviewAction = "approve"
	ReviewActionRequestChanges ReviewAction = "request_changes"
)

// ParseReviewAction converts raw input into a ReviewAction.
func ParseReviewAction(value string) (ReviewAction, error) {
	switch ReviewAction(value) {
	case ReviewActionApprove, ReviewActionRequestChanges:
		return ReviewAction(value), nil
	}
	return "", fmt.Errorf("invalid review action %q", value)
}

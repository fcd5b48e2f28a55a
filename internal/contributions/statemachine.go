package contributions

import "github.com/angelmondragon/tracebridge-backend/pkg/enums"

var requestTransitions = map[enums.RequestStatus][]enums.RequestStatus{
	enums.RequestStatusSent:             {enums.RequestStatusInProgress, enums.RequestStatusDeclined, enums.RequestStatusCancelled},
	enums.RequestStatusInProgress:       {enums.RequestStatusSubmitted, enums.RequestStatusDeclined, enums.RequestStatusCancelled},
	enums.RequestStatusChangesRequested: {enums.RequestStatusSubmitted, enums.RequestStatusDeclined, enums.RequestStatusCancelled},
	enums.RequestStatusSubmitted:        {enums.RequestStatusCompleted, enums.RequestStatusChangesRequested},
	enums.RequestStatusCompleted:        {},
	enums.RequestStatusDeclined:         {},
	enums.RequestStatusCancelled:        {},
}

var versionTransitions = map[enums.VersionStatus][]enums.VersionStatus{
	enums.VersionStatusDraft:     {enums.VersionStatusDraft, enums.VersionStatusSubmitted, enums.VersionStatusRejected, enums.VersionStatusCancelled},
	enums.VersionStatusRejected:  {enums.VersionStatusDraft, enums.VersionStatusRejected, enums.VersionStatusCancelled},
	enums.VersionStatusSubmitted: {enums.VersionStatusApproved, enums.VersionStatusRejected},
	enums.VersionStatusApproved:  {},
	enums.VersionStatusCancelled: {},
}

// CanTransitionRequest reports whether a request may move from one status to another.
func CanTransitionRequest(from, to enums.RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionVersion reports whether a version may move from one status to another.
func CanTransitionVersion(from, to enums.VersionStatus) bool {
	for _, next := range versionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// actionRule is the precondition and outcome of a supplier action.
type actionRule struct {
	requestFrom []enums.RequestStatus
	versionFrom []enums.VersionStatus
	requestTo   enums.RequestStatus
	versionTo   enums.VersionStatus
	label       string
}

var actionRules = map[enums.RequestAction]actionRule{
	enums.RequestActionAccept: {
		requestFrom: []enums.RequestStatus{enums.RequestStatusSent},
		versionFrom: []enums.VersionStatus{enums.VersionStatusDraft, enums.VersionStatusRejected},
		requestTo:   enums.RequestStatusInProgress,
		versionTo:   enums.VersionStatusDraft,
		label:       "Request accepted",
	},
	enums.RequestActionSubmit: {
		requestFrom: []enums.RequestStatus{enums.RequestStatusInProgress, enums.RequestStatusChangesRequested},
		versionFrom: []enums.VersionStatus{enums.VersionStatusDraft},
		requestTo:   enums.RequestStatusSubmitted,
		versionTo:   enums.VersionStatusSubmitted,
		label:       "Data submitted for review",
	},
	enums.RequestActionDecline: {
		requestFrom: []enums.RequestStatus{enums.RequestStatusSent, enums.RequestStatusInProgress, enums.RequestStatusChangesRequested},
		versionFrom: []enums.VersionStatus{enums.VersionStatusDraft, enums.VersionStatusRejected},
		requestTo:   enums.RequestStatusDeclined,
		versionTo:   enums.VersionStatusRejected,
		label:       "Request declined",
	},
}

// editableRequestStatuses are the request statuses under which draft data may be written.
var editableRequestStatuses = []enums.RequestStatus{
	enums.RequestStatusInProgress,
	enums.RequestStatusChangesRequested,
}

// cancellableRequestStatuses excludes every status where data is locked or settled.
var cancellableRequestStatuses = []enums.RequestStatus{
	enums.RequestStatusSent,
	enums.RequestStatusInProgress,
	enums.RequestStatusChangesRequested,
}

func containsRequest(set []enums.RequestStatus, s enums.RequestStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsVersion(set []enums.VersionStatus, s enums.VersionStatus) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

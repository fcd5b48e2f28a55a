package dashboard

import "github.com/angelmondragon/tracebridge-backend/pkg/enums"

// Stats are the supplier dashboard KPIs. RequestsByStatus carries every
// request status, zero included.
type Stats struct {
	PendingInvites   int64                         `json:"pending_invites"`
	ConnectedBrands  int64                         `json:"connected_brands"`
	ActiveTasks      int64                         `json:"active_tasks"`
	AwaitingReview   int64                         `json:"awaiting_review"`
	CompletedTasks   int64                         `json:"completed_tasks"`
	RequestsByStatus map[enums.RequestStatus]int64 `json:"requests_by_status"`
}

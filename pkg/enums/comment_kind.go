package enums

// CommentKind classifies entries of a request's activity log.
type CommentKind string

const (
	CommentKindNote             CommentKind = "NOTE"
	CommentKindStatusChange     CommentKind = "STATUS_CHANGE"
	CommentKindChangesRequested CommentKind = "CHANGES_REQUESTED"
	CommentKindCancellation     CommentKind = "CANCELLATION"
)

func (k CommentKind) String() string {
	return string(k)
}

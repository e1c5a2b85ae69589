package channelsvc

import "errors"

// Sentinel errors for the channelsvc package. Workspace isolation and plain
// absence both surface as ErrNotFound so existence never leaks across
// workspaces. A private channel the caller cannot see is ErrUnauthorized,
// not ErrNotFound, since the caller already knows the channel id (e.g. from
// a prior listing) and nothing is hidden by saying so.
var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("not authorized for this channel")
	ErrInvalidName    = errors.New("channel name must not be empty")
	ErrNameTaken      = errors.New("a channel with this name already exists")
	ErrEmptyBody      = errors.New("message body must not be empty")
	ErrNotSender      = errors.New("only the sender may edit this message")
	ErrReplyOfReply   = errors.New("cannot reply to a thread reply")
	ErrMessageDeleted = errors.New("message has been deleted")
	ErrNotInWorkspace = errors.New("user does not belong to workspace")
)

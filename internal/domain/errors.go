package domain

import "github.com/duetapp/duet-sync/pkg/apperr"

var (
	ErrProfileNotFound      = apperr.NotFound("profile not found")
	ErrConversationNotFound = apperr.NotFound("conversation not found")
	ErrMessageNotFound      = apperr.NotFound("message not found")
	ErrStatsNotFound        = apperr.NotFound("conversation stats not found")

	ErrPermissionDenied = apperr.Forbidden("caller is not allowed to see this")
	ErrNotParticipant   = apperr.Forbidden("caller is not a participant of this conversation")
	ErrAdminOnly        = apperr.Forbidden("operation requires a privileged caller")

	ErrInvalidMessagePayload = apperr.InvalidArg("message payload does not match its type")
	ErrInvalidParticipants   = apperr.InvalidArg("a conversation needs two distinct participants")
	ErrTooManyPhotos         = apperr.InvalidArg("a profile holds at most five photos")
	ErrProfileAlreadyExists  = apperr.AlreadyExists("profile already exists")

	ErrInvalidToken = apperr.Unauthenticated("invalid or expired token")
)

package gift

import "errors"

var (
	// ErrNotFound means the entry, game, or owner is no longer resolvable.
	ErrNotFound = errors.New("gift not found")
	// ErrConflict means another redemption holds the entry's reservation.
	ErrConflict = errors.New("gift is already being claimed")
	// ErrUnauthorized means the caller is not allowed to act on the entry.
	ErrUnauthorized = errors.New("not the owner of this gift")
	// ErrDeliveryFailed means the key could not be handed to the recipient;
	// the reservation was released and the entry stays available.
	ErrDeliveryFailed = errors.New("failed to deliver gift key")
	// ErrApprovalRequired means the entry cannot be redeemed directly.
	ErrApprovalRequired = errors.New("gift requires owner approval")
)

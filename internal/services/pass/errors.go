package pass

import "github.com/magabrotheeeer/campus-pass/internal/lib/apperr"

// Ошибки жизненного цикла и протокола проверки пропусков.
var (
	ErrInvalidDestination = apperr.New(apperr.KindValidation, "invalid_destination",
		"Invalid destination category")
	ErrInvalidPassType = apperr.New(apperr.KindValidation, "invalid_pass_type",
		"Invalid pass type")
	ErrActivePassExists = apperr.New(apperr.KindConflict, "active_pass_exists",
		"You already have an active pass. Please use it or wait for it to expire.")
	ErrNotFoundOrUnauthorized = apperr.New(apperr.KindNotFound, "pass_not_found_or_unauthorized",
		"Pass not found or unauthorized")
	ErrNotPending = apperr.New(apperr.KindConflict, "pass_not_pending",
		"Only pending passes can be dropped")
	ErrInvalidToken = apperr.New(apperr.KindAuth, "invalid_token",
		"Invalid QR Code")
	ErrNotFound = apperr.New(apperr.KindNotFound, "pass_not_found",
		"Pass not found")
	ErrWrongState = apperr.New(apperr.KindConflict, "pass_wrong_state",
		"Pass is not pending")
	ErrExpired = apperr.New(apperr.KindConflict, "pass_expired",
		"This pass has expired (3-hour limit reached)")
	ErrInvalidOrExpiredCode = apperr.New(apperr.KindValidation, "invalid_or_expired_code",
		"Invalid or expired approval code")
)

func wrongState(status string) error {
	return ErrWrongState.WithMessage("Pass is already " + status)
}

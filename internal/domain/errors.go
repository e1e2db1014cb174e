package domain

import "errors"

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrShowEnded           = errors.New("show already ended")
	ErrPrivateShowBlocked  = errors.New("private show in progress")
	ErrRelayTargetMissing  = errors.New("relay target missing")
	ErrTranslationProvider = errors.New("translation provider failure")
	ErrBadPayload          = errors.New("bad payload")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnknownSession      = errors.New("unknown session")
)

package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrInvalidLimit    = errors.New("invalid leaderboard limit")
	ErrInvalidScore    = errors.New("score delta must be finite")
	ErrEmptyUserID     = errors.New("empty user id")
	ErrInvalidActivity = errors.New("invalid activity kind")
)

package nrd

import "errors"

var ErrFeedTooLarge = errors.New("feed too large")

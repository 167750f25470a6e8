package chat

import "errors"

var (
	// ErrUnsupportedModel is returned when a model id is not in the catalog.
	// The active selection is left untouched.
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrEmptyReply is returned when a provider answered without any text.
	ErrEmptyReply = errors.New("provider returned an empty reply")
	// ErrNoSession is returned by session operations before a session model is selected.
	ErrNoSession = errors.New("no session provider selected")
)

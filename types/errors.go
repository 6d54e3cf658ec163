package types

import "errors"

var (
	ErrVocabulary    = errors.New("vocabulary error")
	ErrCorpusFormat  = errors.New("corpus format error")
	ErrUnknownLabel  = errors.New("unknown label")
	ErrAlignment     = errors.New("token/label count mismatch")
	ErrConfig        = errors.New("config error")
	ErrTraining      = errors.New("training error")
	ErrModelNotFound = errors.New("model not found")
	ErrModelCorrupt  = errors.New("model corrupt")
)

package model

import "errors"

// Domain errors. Handlers map these to HTTP status codes and wire-level
// error strings; nothing below this layer knows about HTTP.
var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrExpired           = errors.New("payload expired")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrNotAssigned       = errors.New("teacher not assigned to subject")
	ErrAlreadyOpen       = errors.New("lesson already open")
	ErrLessonClosed      = errors.New("lesson closed")
	ErrLessonNotOpen     = errors.New("lesson not open")
	ErrLessonNotPending  = errors.New("lesson not pending")
	ErrNotYourLesson     = errors.New("lesson owned by another teacher")
	ErrNotInGroup        = errors.New("student not in lesson group")
	ErrNotFound          = errors.New("not found")
	ErrInvalidStatus     = errors.New("invalid attendance status")
)

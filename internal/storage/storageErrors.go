package storage

import "errors"

var (
	ErrAdminNotFound       = errors.New("admin not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrAttendantNotFound   = errors.New("attendant not found")
	ErrAttendantExists     = errors.New("attendant with this student id already exists")
	ErrWalletAlreadyBound  = errors.New("attendant already has a registered wallet address")
	ErrSemesterNotFound    = errors.New("semester not found")
	ErrClassNotFound       = errors.New("class not found")
	ErrPollNotFound        = errors.New("poll not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrOptionNotFound      = errors.New("option not found")
	ErrForeignKeyViolation = errors.New("referenced row does not exist")
)

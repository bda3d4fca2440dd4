package models

import (
	"errors"
	"fmt"
)

var (
	// ErrBlacklisted: отправитель заблокирован, заявка не создаётся.
	ErrBlacklisted = errors.New("sender is blacklisted")
	// ErrInvalidTransition: команда несовместима с текущим состоянием заявки.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownCommand: текст команды не распознан.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnauthorized: команду прислал не модератор группы.
	ErrUnauthorized = errors.New("not a moderator")
	// ErrNotFound: запись отсутствует в хранилище.
	ErrNotFound = errors.New("not found")

	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrRenderFailure             = errors.New("render failure")
	ErrDeliveryTransient         = errors.New("transient delivery failure")
	ErrDeliveryTerminal          = errors.New("terminal delivery failure")
)

// TransitionError подробно описывает отклонённую команду.
// errors.Is(err, ErrInvalidTransition) для неё истинно.
type TransitionError struct {
	SubmissionID int64
	Command      string
	From         SubmissionStatus
	Reason       string
}

func (e *TransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("%s #%d: %s", e.Command, e.SubmissionID, e.Reason)
	}
	return fmt.Sprintf("%s #%d (%s): %s", e.Command, e.SubmissionID, e.From, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Package authflow is the phone and one-time-code login form.
//
// The flow has two input steps. The phone step requests a code; the code
// step submits automatically once enough digits are entered. Errors are
// attached to the field they belong to so a form can render them inline.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Makepad-fr/todos/internal/api"
	"github.com/Makepad-fr/todos/internal/model"
)

const (
	// FirstResendDelay is the wait before the first resend, in seconds.
	FirstResendDelay = 60
	// ResendDelay is the wait after every resend, in seconds.
	ResendDelay = 90
	// CodeLength is the number of digits that triggers submission.
	CodeLength = 4
)

// Field names used in FieldError.
const (
	FieldPhone = "phone"
	FieldCode  = "code"
)

const (
	msgRequired  = "Required field"
	msgTryLater  = "Something went wrong, try again later..."
	msgWrongCode = "The code is incorrect"
)

var (
	ErrInvalidPhone = errors.New("invalid phone")
	// ErrResendLocked is returned when a resend is attempted before the
	// timer has run out.
	ErrResendLocked = errors.New("resend not available yet")
)

// FieldError is a validation or submission error shown next to a field.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }
func (e *FieldError) Unwrap() error { return e.Err }

// Step of the flow.
type Step int

const (
	EnterPhone Step = iota
	EnterCode
	Done
)

// Backend is the subset of the API client the flow calls.
type Backend interface {
	RequestCode(ctx context.Context, phone string) (*api.CodeReply, error)
	Login(ctx context.Context, phone, code string) (*model.User, error)
	UpdateMe(ctx context.Context, upd api.UserUpdate) (*model.User, error)
}

// Refresher re-validates the session after login.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Flow is safe for concurrent use; network calls run without the lock.
type Flow struct {
	backend Backend
	session Refresher
	log     *slog.Logger

	mu    sync.Mutex
	step  Step
	phone string
	name  string
	code  string
	timer int
	err   *FieldError
	user  *model.User
}

func New(backend Backend, session Refresher, log *slog.Logger) *Flow {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Flow{backend: backend, session: session, log: log}
}

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SetPhone stores the phone, keeping digits only.
func (f *Flow) SetPhone(raw string) {
	f.mu.Lock()
	f.phone = Digits(raw)
	f.mu.Unlock()
}

// SetName stores the optional display name saved after login.
func (f *Flow) SetName(name string) {
	f.mu.Lock()
	f.name = strings.TrimSpace(name)
	f.mu.Unlock()
}

// SubmitPhone requests a code and moves to EnterCode.
func (f *Flow) SubmitPhone(ctx context.Context) error {
	f.mu.Lock()
	phone := f.phone
	if phone == "" {
		f.err = &FieldError{Field: FieldPhone, Message: msgRequired, Err: ErrInvalidPhone}
		err := f.err
		f.mu.Unlock()
		return err
	}
	f.err = nil
	f.mu.Unlock()

	if _, err := f.backend.RequestCode(ctx, phone); err != nil {
		f.log.Warn("authflow: request code", "err", err)
		fe := &FieldError{Field: FieldPhone, Message: msgTryLater, Err: err}
		f.mu.Lock()
		f.err = fe
		f.mu.Unlock()
		return fe
	}

	f.mu.Lock()
	f.step = EnterCode
	f.code = ""
	f.timer = FirstResendDelay
	f.mu.Unlock()
	return nil
}

// Tick advances the resend timer by one second.
func (f *Flow) Tick() {
	f.mu.Lock()
	if f.timer > 0 {
		f.timer--
	}
	f.mu.Unlock()
}

// CanResend reports whether the resend action is enabled.
func (f *Flow) CanResend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step == EnterCode && f.timer == 0
}

// Resend requests a new code and restarts the timer. A failed resend
// returns to the phone step with the error on the phone field.
func (f *Flow) Resend(ctx context.Context) error {
	if !f.CanResend() {
		return ErrResendLocked
	}
	f.mu.Lock()
	phone := f.phone
	f.timer = ResendDelay
	f.mu.Unlock()

	if _, err := f.backend.RequestCode(ctx, phone); err != nil {
		f.log.Warn("authflow: resend code", "err", err)
		fe := &FieldError{Field: FieldPhone, Message: msgTryLater, Err: err}
		f.mu.Lock()
		f.step = EnterPhone
		f.err = fe
		f.mu.Unlock()
		return fe
	}
	return nil
}

// SetCode stores the code, keeping digits only, and submits once it is
// CodeLength digits long. It reports whether a submission happened.
func (f *Flow) SetCode(ctx context.Context, raw string) (bool, error) {
	f.mu.Lock()
	f.code = Digits(raw)
	if len(f.code) > 6 {
		f.code = f.code[:6]
	}
	code, phone, step := f.code, f.phone, f.step
	f.mu.Unlock()

	if step != EnterCode || len(code) < CodeLength {
		return false, nil
	}
	return true, f.submit(ctx, phone, code)
}

func (f *Flow) submit(ctx context.Context, phone, code string) error {
	user, err := f.backend.Login(ctx, phone, code)
	if err != nil {
		msg := msgTryLater
		if errors.Is(err, api.ErrBadRequest) {
			msg = msgWrongCode
		} else {
			f.log.Warn("authflow: login", "err", err)
		}
		fe := &FieldError{Field: FieldCode, Message: msg, Err: err}
		f.mu.Lock()
		f.err = fe
		f.mu.Unlock()
		return fe
	}

	f.mu.Lock()
	name := f.name
	f.mu.Unlock()
	if name != "" {
		updated, err := f.backend.UpdateMe(ctx, api.UserUpdate{Name: &name})
		if err != nil {
			f.log.Warn("authflow: save name", "err", err)
		} else {
			user = updated
		}
	}

	f.mu.Lock()
	f.step = Done
	f.err = nil
	f.user = user
	f.mu.Unlock()

	if f.session != nil {
		if err := f.session.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh session: %w", err)
		}
	}
	return nil
}

// Back returns to the phone step keeping the entered phone.
func (f *Flow) Back() {
	f.mu.Lock()
	f.step = EnterPhone
	f.code = ""
	f.err = nil
	f.mu.Unlock()
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Phone() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phone
}

func (f *Flow) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

func (f *Flow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

// Timer returns the seconds left before a resend is allowed.
func (f *Flow) Timer() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer
}

// Err returns the current field error, if any.
func (f *Flow) Err() *FieldError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// User returns the user signed in by the flow.
func (f *Flow) User() (model.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.User{}, false
	}
	return *f.user, true
}

// Clock formats seconds as MM:SS, or H:MM:SS from one hour up.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h == 0 {
		return fmt.Sprintf("%02d:%02d", m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

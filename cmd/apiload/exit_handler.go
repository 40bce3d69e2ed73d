package main

import (
	"errors"
	"os"
	"strconv"

	"github.com/loykin/apiload/internal/common"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitBadStatus   = 2
	ExitTasksFailed = 3
)

// ExitCodeError carries a non-zero exit code. A nil Err means the command
// already reported the outcome and only the code is left to apply.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error { return e.Err }

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitCodeError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitError
}

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct {
	logger *common.Logger
}

// NewDefaultExitHandler creates a new default exit handler
func NewDefaultExitHandler() *DefaultExitHandler {
	return &DefaultExitHandler{
		logger: common.GetLogger().WithComponent("main"),
	}
}

// Exit terminates the program with the given exit code
func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs a fatal error and exits with the code err maps to.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	allKeyvals := append([]any{"error", err}, keyvals...)
	h.logger.Error(msg, allKeyvals...)
	h.Exit(ExitCode(err))
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = NewDefaultExitHandler()

// finish applies the outcome of a command.
func finish(h ExitHandler, err error) {
	if err == nil {
		return
	}
	var ee *ExitCodeError
	if errors.As(err, &ee) && ee.Err == nil {
		h.Exit(ee.Code)
		return
	}
	h.LogFatalError(err, "command execution failed")
}

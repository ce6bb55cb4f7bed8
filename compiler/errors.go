package compiler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSyntax           = errors.New("syntax error")
	ErrUndefinedCommand = errors.New("undefined command")
	ErrArg0Conflict     = errors.New("command has a fixed arg0")
	ErrMissingArg0      = errors.New("command requires an arg0")
	ErrWrongArgCount    = errors.New("wrong number of arguments")
	ErrWrongArgType     = errors.New("wrong argument type")
	ErrUnresolvedLabel  = errors.New("unresolved label")
	ErrDuplicateLabel   = errors.New("duplicate label")
)

// Error is a source error tied to a position and, where it applies, to a
// command and one of its arguments.
type Error struct {
	Pos     Position
	Command string // command name, empty for non-command errors
	Arg     int    // argument index, -1 when not about an argument
	Err     error  // one of the Err* sentinels
	Detail  string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Pos.String())
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	if e.Command != "" {
		fmt.Fprintf(&sb, " in %s", e.Command)
		if e.Arg >= 0 {
			fmt.Fprintf(&sb, " argument %d", e.Arg)
		}
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

func errorAt(pos Position, err error, format string, args ...any) *Error {
	return &Error{Pos: pos, Arg: -1, Err: err, Detail: fmt.Sprintf(format, args...)}
}

func commandError(c *Command, arg int, err error, format string, args ...any) *Error {
	return &Error{
		Pos:     c.Pos,
		Command: c.DisplayName(),
		Arg:     arg,
		Err:     err,
		Detail:  fmt.Sprintf(format, args...),
	}
}

// Package wrterr defines the error taxonomy shared by every layer of the
// frame-graph engine (store, algebra, frame graph, session, query builder).
// Each failure mode is a distinct Kind so callers can dispatch with
// errors.As instead of string matching, following the same enum-plus-struct
// shape as DependencyErrorType/DependencyError.
package wrterr

import "fmt"

// Kind identifies one of the error taxonomy's distinct failure modes.
type Kind int

const (
	// InvalidName means a world or frame name failed the ^[0-9a-z\-]+$ grammar.
	InvalidName Kind = iota
	// RootImmutable means the caller attempted to Set the reserved "world" frame.
	RootImmutable
	// SelfReference means Wrt(B) was called with B equal to the Set subject.
	SelfReference
	// BadMatrix means SE(3) validation of a submitted 4x4 matrix failed; see Fault.
	BadMatrix
	// MissingReference means a required frame does not exist per the Set case matrix.
	MissingReference
	// DisconnectedGraph means two frames resolved to different tree roots.
	DisconnectedGraph
	// KinematicLoop means an ancestor walk revisited its own starting subject.
	KinematicLoop
	// TruncatedChain means MAX_DEPTH was exceeded without reaching a nil parent.
	TruncatedChain
	// NotWritable means no candidate directory accepted the Store's writability probe.
	NotWritable
	// StoreBusy means a Store operation failed: a busy-wait timeout, and
	// likewise any other driver error from opening, querying or writing the
	// Store, is reported with this kind.
	StoreBusy
)

func (k Kind) String() string {
	switch k {
	case InvalidName:
		return "InvalidName"
	case RootImmutable:
		return "RootImmutable"
	case SelfReference:
		return "SelfReference"
	case BadMatrix:
		return "BadMatrix"
	case MissingReference:
		return "MissingReference"
	case DisconnectedGraph:
		return "DisconnectedGraph"
	case KinematicLoop:
		return "KinematicLoop"
	case TruncatedChain:
		return "TruncatedChain"
	case NotWritable:
		return "NotWritable"
	case StoreBusy:
		return "StoreBusy"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MatrixFault sub-codes the reason a BadMatrix error was raised.
type MatrixFault int

const (
	// NoFault is the zero value for errors that are not BadMatrix.
	NoFault MatrixFault = iota
	// NotOrthogonal means ||R*Rt - I||_F exceeded the SO(3) tolerance.
	NotOrthogonal
	// WrongDeterminant means |det(R) - 1| exceeded the SO(3) tolerance.
	WrongDeterminant
	// BadLastRow means the submitted matrix's last row was not exactly [0,0,0,1].
	BadLastRow
)

func (f MatrixFault) String() string {
	switch f {
	case NotOrthogonal:
		return "NotOrthogonal"
	case WrongDeterminant:
		return "WrongDeterminant"
	case BadLastRow:
		return "BadLastRow"
	default:
		return ""
	}
}

// Error is the concrete type behind every failure this module returns.
type Error struct {
	Kind   Kind
	Fault  MatrixFault // only meaningful when Kind == BadMatrix
	Name   string      // the offending frame/world name, when applicable
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == BadMatrix && e.Fault != NoFault:
		if e.Detail != "" {
			return fmt.Sprintf("%s{%s}: %s", e.Kind, e.Fault, e.Detail)
		}
		return fmt.Sprintf("%s{%s}", e.Kind, e.Fault)
	case e.Name != "" && e.Detail != "":
		return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Detail)
	case e.Name != "":
		return fmt.Sprintf("%s %q", e.Kind, e.Name)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	default:
		return e.Kind.String()
	}
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }

// New builds a plain Error of the given kind with a free-form detail string.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Named builds an Error that names the offending frame or world.
func Named(kind Kind, name, detail string) *Error {
	return &Error{Kind: kind, Name: name, Detail: detail}
}

// Wrap builds an Error that carries an underlying cause (e.g. a driver error).
func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{Kind: kind, Cause: cause, Detail: detail}
}

// BadMatrixErr builds a BadMatrix error with the given validation sub-code.
func BadMatrixErr(fault MatrixFault, detail string) *Error {
	return &Error{Kind: BadMatrix, Fault: fault, Detail: detail}
}

// BadMatrixErrCause builds a BadMatrix error carrying the aggregate of every
// independent validation failure detected, even though only the
// first-detected sub-code (per spec priority: last row, orthogonality,
// determinant) is reported as Fault.
func BadMatrixErrCause(fault MatrixFault, detail string, cause error) *Error {
	return &Error{Kind: BadMatrix, Fault: fault, Detail: detail, Cause: cause}
}

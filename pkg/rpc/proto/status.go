package proto

import "fmt"

// CommandStatus is the status code carried by every envelope.
type CommandStatus int32

// Command statuses.
const (
	StatusOK                                CommandStatus = 0
	StatusError                             CommandStatus = 1
	StatusErrorDecode                       CommandStatus = 2
	StatusErrorNotImplemented               CommandStatus = 3
	StatusErrorBusy                         CommandStatus = 4
	StatusErrorContinuousCommandInterrupted CommandStatus = 14
	StatusErrorInvalidParameters            CommandStatus = 15
)

var statusNames = map[CommandStatus]string{
	StatusOK:                                "OK",
	StatusError:                             "ERROR",
	StatusErrorDecode:                       "ERROR_DECODE",
	StatusErrorNotImplemented:               "ERROR_NOT_IMPLEMENTED",
	StatusErrorBusy:                         "ERROR_BUSY",
	StatusErrorContinuousCommandInterrupted: "ERROR_CONTINUOUS_COMMAND_INTERRUPTED",
	StatusErrorInvalidParameters:            "ERROR_INVALID_PARAMETERS",
}

// String implements fmt.Stringer.
func (s CommandStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CommandStatus(%d)", int32(s))
}

// CommandError is a non-OK status received from the device.
type CommandError struct {
	CommandID uint32
	Status    CommandStatus
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %d failed: %s", e.CommandID, e.Status)
}

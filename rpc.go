package mapreduce

import "fmt"

// RPCError carries one of the coordinator's status codes across the
// net/rpc boundary. net/rpc only transmits errors as strings, so the
// status code is encoded as a "CODE: message" prefix and recovered with
// StatusOf on the client side.
type RPCError struct {
	Status  string
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func newRPCError(status, format string, args ...interface{}) *RPCError {
	return &RPCError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// StatusOf recovers the status code from an error returned by a
// coordinator RPC call. net/rpc only round-trips errors as plain
// strings (it reconstructs a generic rpc.ServerError on the client),
// so the status is recovered from the "CODE: message" prefix rather
// than a type assertion. It returns "" if err does not carry one.
func StatusOf(err error) string {
	if err == nil {
		return StatusOK
	}
	msg := err.Error()
	for _, code := range []string{StatusInvalidArgument, StatusNotFound, StatusUnavailable, StatusOK} {
		prefix := code + ": "
		if len(msg) >= len(prefix) && msg[:len(prefix)] == prefix {
			return code
		}
	}
	return ""
}

// AssignArgs is the worker's request for a new task.
type AssignArgs struct {
	WorkerID string
}

// AssignReply describes the task the coordinator handed out.
type AssignReply struct {
	TaskName       string // "map" or "reduce"
	InputFilenames []string
	OutputFilename string
}

// CompleteArgs reports that a worker finished a task.
type CompleteArgs struct {
	WorkerID       string
	TaskName       string
	OutputFilename string
}

// CompleteReply carries no data; success is the absence of an error.
type CompleteReply struct{}

package driver

import (
	"fmt"
	"net"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// Error labels this driver attaches to or reads from command errors
// (spec.md §7's error-label taxonomy).
const (
	NetworkError                  = "NetworkError"
	TransientTransactionError     = "TransientTransactionError"
	UnknownTransactionCommitResult = "UnknownTransactionCommitResult"
	RetryableWriteError           = "RetryableWriteError"
	ResumableChangeStreamError    = "ResumableChangeStreamError"
)

// notMasterCodes and nodeRecoveringCodes are the server error codes that
// mark a server as stepping down or recovering, the trigger for the SDAM
// invalidation rules in spec.md §4.1.
var notMasterCodes = map[int32]bool{
	10107: true, // NotWritablePrimary / NotMaster
	13435: true, // NotPrimaryNoSecondaryOk
	10058: true, // LegacyNotPrimary
}

var nodeRecoveringCodes = map[int32]bool{
	11600: true, // InterruptedAtShutdown
	91:    true, // ShutdownInProgress
	189:   true, // PrimarySteppedDown
	11602: true, // InterruptedDueToReplStateChange
	13436: true, // NotPrimaryOrSecondary
}

var nodeShuttingDownCodes = map[int32]bool{
	11600: true,
	91:    true,
}

// retryableCodes is the set of error codes spec.md §4.6 says make a read or
// write retryable.
var retryableCodes = map[int32]bool{
	6:     true, // HostUnreachable
	7:     true, // HostNotFound
	89:    true, // NetworkTimeout
	91:    true, // ShutdownInProgress
	189:   true, // PrimarySteppedDown
	9001:  true, // SocketException
	10107: true, // NotWritablePrimary
	11600: true, // InterruptedAtShutdown
	11602: true, // InterruptedDueToReplStateChange
	13435: true, // NotPrimaryNoSecondaryOk
	13436: true, // NotPrimaryOrSecondary
	63:    true, // StaleShardVersion
	150:   true, // StaleEpoch
	13388: true, // StaleConfig
	234:   true, // RetryChangeStream
}

// Error represents a command error: the server replied but reported
// { ok: 0 } or equivalent, or the reply couldn't be decoded at all.
type Error struct {
	Code            int32
	Message         string
	Name            string
	Labels          []string
	Wrapped         error
	TopologyVersion *description.TopologyVersion
	Raw             bson.Raw
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%s) %s", e.Name, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying wrapped error, if any.
func (e Error) Unwrap() error { return e.Wrapped }

// HasErrorLabel reports whether e carries the given label.
func (e Error) HasErrorLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// NotMaster reports whether e indicates the server is no longer primary.
func (e Error) NotMaster() bool { return notMasterCodes[e.Code] }

// NodeIsRecovering reports whether e indicates the server is mid-election
// or otherwise not yet ready to serve.
func (e Error) NodeIsRecovering() bool { return nodeRecoveringCodes[e.Code] }

// NodeIsShuttingDown reports whether e indicates the server process is
// shutting down, which forces a synchronous pool clear (spec.md §4.1).
func (e Error) NodeIsShuttingDown() bool { return nodeShuttingDownCodes[e.Code] }

// Retryable reports whether e's code is in the retryable set spec.md §4.6
// defines for both reads and writes.
func (e Error) Retryable() bool { return retryableCodes[e.Code] }

// WriteError is a single error within a bulk write's writeErrors array.
type WriteError struct {
	Index   int64
	Code    int64
	Message string
	Raw     bson.Raw
}

func (we WriteError) Error() string { return we.Message }

// WriteConcernError represents the writeConcernError field of a write
// command reply.
type WriteConcernError struct {
	Code            int64
	Name            string
	Message         string
	Details         bson.Raw
	Labels          []string
	TopologyVersion *description.TopologyVersion
}

func (wce WriteConcernError) Error() string { return wce.Message }

// NotMaster reports whether wce indicates the server is no longer primary.
func (wce WriteConcernError) NotMaster() bool { return notMasterCodes[int32(wce.Code)] }

// NodeIsRecovering reports whether wce indicates the server is recovering.
func (wce WriteConcernError) NodeIsRecovering() bool { return nodeRecoveringCodes[int32(wce.Code)] }

// NodeIsShuttingDown reports whether wce indicates the server is shutting
// down.
func (wce WriteConcernError) NodeIsShuttingDown() bool { return nodeShuttingDownCodes[int32(wce.Code)] }

// HasErrorLabel reports whether wce carries the given label.
func (wce WriteConcernError) HasErrorLabel(label string) bool {
	for _, l := range wce.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// WriteException aggregates per-document write errors and an optional
// write concern error from a single batch write command reply.
type WriteException struct {
	WriteErrors       []WriteError
	WriteConcernError *WriteConcernError
	Labels            []string
}

func (we WriteException) Error() string {
	switch {
	case len(we.WriteErrors) > 0 && we.WriteConcernError != nil:
		return fmt.Sprintf("write errors: %v; write concern error: %v", we.WriteErrors, we.WriteConcernError)
	case len(we.WriteErrors) > 0:
		return fmt.Sprintf("write errors: %v", we.WriteErrors)
	case we.WriteConcernError != nil:
		return fmt.Sprintf("write concern error: %v", we.WriteConcernError)
	default:
		return "write exception"
	}
}

// HasErrorLabel reports whether we carries the given label, either directly
// or via its write concern error.
func (we WriteException) HasErrorLabel(label string) bool {
	for _, l := range we.Labels {
		if l == label {
			return true
		}
	}
	return we.WriteConcernError != nil && we.WriteConcernError.HasErrorLabel(label)
}

// ServerSelectionError is returned when no server could be selected before
// the selection timeout elapsed (spec.md §4.3).
type ServerSelectionError struct {
	Wrapped error
	Desc    description.Topology
}

func (e ServerSelectionError) Error() string {
	return fmt.Sprintf("server selection error: %v, current topology: %s", e.Wrapped, e.Desc.Kind)
}

func (e ServerSelectionError) Unwrap() error { return e.Wrapped }

// ConnectionError represents a failure to establish or use a connection,
// before any server reply was available to classify.
type ConnectionError struct {
	ConnectionID string
	Wrapped      error
	message      string
}

func (e ConnectionError) Error() string {
	msg := "connection error"
	if e.message != "" {
		msg = e.message
	}
	if e.ConnectionID != "" {
		msg = fmt.Sprintf("%s: %s", e.ConnectionID, msg)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	return msg
}

func (e ConnectionError) Unwrap() error { return e.Wrapped }

// NewConnectionError constructs a ConnectionError, the counterpart to the
// teacher's ad hoc Error{} literals scattered through connection.go.
func NewConnectionError(connID, message string, wrapped error) ConnectionError {
	return ConnectionError{ConnectionID: connID, message: message, Wrapped: wrapped}
}

// IsNetworkError reports whether err is a plain network-level failure (as
// opposed to a well-formed server error reply), the distinction spec.md
// §4.1's error-handling rules and §4.6's retry rules both depend on.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case Error, WriteError, WriteConcernError, WriteException:
		return false
	}
	_, ok := err.(net.Error)
	if ok {
		return true
	}
	_, isConnErr := err.(ConnectionError)
	return isConnErr
}

// extractError parses a command reply document into the Error/WriteException
// taxonomy, returning nil if the command succeeded with no write errors.
func extractError(rdr bson.Raw) error {
	elems, err := rdr.Elements()
	if err != nil {
		return err
	}

	var errmsg, codeName string
	var code int32
	var labels []string
	ok := false
	var wcErr WriteException

	for _, elem := range elems {
		switch elem.Key() {
		case "ok":
			v := elem.Value()
			switch v.Type {
			case bson.TypeInt32:
				ok = v.Int32() == 1
			case bson.TypeInt64:
				ok = v.Int64() == 1
			case bson.TypeDouble:
				ok = v.Double() == 1
			}
		case "errmsg":
			errmsg = elem.Value().StringValue()
		case "codeName":
			codeName = elem.Value().StringValue()
		case "code":
			code = elem.Value().Int32()
		case "errorLabels":
			if vals, err := elem.Value().Values(); err == nil {
				for _, v := range vals {
					labels = append(labels, v.StringValue())
				}
			}
		case "writeErrors":
			if vals, err := elem.Value().Values(); err == nil {
				for _, v := range vals {
					doc := v.Document()
					if doc == nil {
						continue
					}
					we := WriteError{
						Index:   doc.Lookup("index").AsInt64(),
						Code:    doc.Lookup("code").AsInt64(),
						Message: doc.Lookup("errmsg").StringValue(),
						Raw:     doc,
					}
					wcErr.WriteErrors = append(wcErr.WriteErrors, we)
				}
			}
		case "writeConcernError":
			doc := elem.Value().Document()
			if doc == nil {
				continue
			}
			wce := &WriteConcernError{
				Code:    doc.Lookup("code").AsInt64(),
				Message: doc.Lookup("errmsg").StringValue(),
				Name:    doc.Lookup("codeName").StringValue(),
			}
			if info := doc.Lookup("errInfo").Document(); info != nil {
				wce.Details = info
			}
			wcErr.WriteConcernError = wce
		}
	}

	if !ok {
		if errmsg == "" {
			errmsg = "command failed"
		}
		return Error{Code: code, Message: errmsg, Name: codeName, Labels: labels, Raw: rdr}
	}

	if len(wcErr.WriteErrors) > 0 || wcErr.WriteConcernError != nil {
		wcErr.Labels = labels
		return wcErr
	}
	return nil
}

// ExtractError is the exported form of extractError, used by the operation
// package to turn a decoded command reply into an error (nil on success).
func ExtractError(rdr bson.Raw) error { return extractError(rdr) }

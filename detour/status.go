package detour

import (
	"errors"
	"fmt"
	"strings"
)

type DtStatus uint32

const (
	// High level status.
	DT_FAILURE     DtStatus = 1 << 31 // Operation failed.
	DT_SUCCESS     DtStatus = 1 << 30 // Operation succeed.
	DT_IN_PROGRESS DtStatus = 1 << 29 // Operation still in progress.

	// Detail information for status.
	DT_STATUS_DETAIL_MASK DtStatus = 0x0ffffff
	DT_WRONG_MAGIC        DtStatus = 1 << 0  // Input data is not recognized.
	DT_WRONG_VERSION      DtStatus = 1 << 1  // Input data is in wrong version.
	DT_OUT_OF_MEMORY      DtStatus = 1 << 2  // Operation ran out of memory.
	DT_INVALID_PARAM      DtStatus = 1 << 3  // An input parameter was invalid.
	DT_BUFFER_TOO_SMALL   DtStatus = 1 << 4  // Result buffer for the query was too small to store all results.
	DT_OUT_OF_NODES       DtStatus = 1 << 5  // Query ran out of nodes during search.
	DT_PARTIAL_RESULT     DtStatus = 1 << 6  // Query did not reach the end location, returning best guess.
	DT_ALREADY_OCCUPIED   DtStatus = 1 << 7  // A tile has already been assigned to the given x,y coordinate
	DT_INVALID_REF        DtStatus = 1 << 8  // Stale salt or out of range tile/polygon index.
	DT_FILTERED_OUT       DtStatus = 1 << 9  // Polygon exists but the filter rejects it.
	DT_NOT_FOUND          DtStatus = 1 << 10 // Spatial query found no candidate.
	DT_INVALID_AREA       DtStatus = 1 << 11 // Area id out of range.
)

var ErrFailure = errors.New("operation failed")
var ErrWrongMagic = fmt.Errorf("%w: input data is not recognized", ErrFailure)
var ErrWrongVersion = fmt.Errorf("%w: input data is in wrong version", ErrFailure)
var ErrOutOfMemory = fmt.Errorf("%w: operation ran out of memory", ErrFailure)
var ErrInvalidParam = fmt.Errorf("%w: an input parameter was invalid", ErrFailure)
var ErrAlreadyOccupied = fmt.Errorf("%w: tile location already occupied", ErrFailure)
var ErrInvalidRef = fmt.Errorf("%w: invalid polygon reference", ErrFailure)
var ErrFilteredOut = fmt.Errorf("%w: polygon rejected by filter", ErrFailure)
var ErrNotFound = fmt.Errorf("%w: no polygon found", ErrFailure)
var ErrInvalidArea = fmt.Errorf("%w: area id out of range", ErrFailure)

var ErrBufferTooSmall = errors.New("result buffer for the query was too small to store all results")
var ErrOutOfNodes = errors.New("query ran out of nodes during search")
var ErrInProgress = errors.New("operation in progress")
var ErrPartialResult = errors.New("query did not reach the end location, returning best guess")

var statusDetails = []struct {
	bit  DtStatus
	name string
	err  error
}{
	{DT_WRONG_MAGIC, "wrong magic", ErrWrongMagic},
	{DT_WRONG_VERSION, "wrong version", ErrWrongVersion},
	{DT_OUT_OF_MEMORY, "out of memory", ErrOutOfMemory},
	{DT_INVALID_PARAM, "invalid param", ErrInvalidParam},
	{DT_ALREADY_OCCUPIED, "already occupied", ErrAlreadyOccupied},
	{DT_INVALID_REF, "invalid ref", ErrInvalidRef},
	{DT_FILTERED_OUT, "filtered out", ErrFilteredOut},
	{DT_NOT_FOUND, "not found", ErrNotFound},
	{DT_INVALID_AREA, "invalid area", ErrInvalidArea},
	{DT_BUFFER_TOO_SMALL, "buffer too small", ErrBufferTooSmall},
	{DT_OUT_OF_NODES, "out of nodes", ErrOutOfNodes},
	{DT_PARTIAL_RESULT, "partial result", ErrPartialResult},
}

// Returns true of status is success.
func (status DtStatus) Succeed() bool {
	return (status & DT_SUCCESS) != 0
}

// Returns true of status is failure.
func (status DtStatus) Failed() bool {
	return (status & DT_FAILURE) != 0
}

// Returns true of status is in progress.
func (status DtStatus) InProgress() bool {
	return (status & DT_IN_PROGRESS) != 0
}

// Returns true if specific detail is set.
func (status DtStatus) Detail(detail DtStatus) bool {
	return (status & detail) != 0
}

// Err converts a failed status into an error that matches the detail
// sentinels with errors.Is. Successful statuses return nil even when they
// carry detail bits such as DT_PARTIAL_RESULT; use Warnings for those.
func (status DtStatus) Err() error {
	if !status.Failed() {
		return nil
	}
	var errs []error
	for _, d := range statusDetails {
		if status.Detail(d.bit) {
			errs = append(errs, d.err)
		}
	}
	switch len(errs) {
	case 0:
		return ErrFailure
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}

// Warnings returns the detail bits of a successful status as an error, or nil.
func (status DtStatus) Warnings() error {
	if status.Failed() {
		return nil
	}
	var errs []error
	for _, d := range statusDetails {
		if status.Detail(d.bit) {
			errs = append(errs, d.err)
		}
	}
	return errors.Join(errs...)
}

func (status DtStatus) String() string {
	var sb strings.Builder
	switch {
	case status.Failed():
		sb.WriteString("failure")
	case status.InProgress():
		sb.WriteString("in progress")
	case status.Succeed():
		sb.WriteString("success")
	default:
		sb.WriteString("unknown")
	}
	for _, d := range statusDetails {
		if status.Detail(d.bit) {
			sb.WriteString("|")
			sb.WriteString(d.name)
		}
	}
	return sb.String()
}

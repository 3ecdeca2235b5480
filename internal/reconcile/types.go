package reconcile

import (
	"errors"
	"fmt"

	"github.com/evanofslack/ddns-sync/internal/provider"
)

type Results struct {
	ZoneID         string
	Address        string
	DryRun         bool
	UpToDate       []string
	Updated        []Update
	Created        []Update
	NotifyFailures []OperationResult
}

// Update is a record the run wrote (or would write in dry run mode).
type Update struct {
	Subdomain string
	FQDN      string
	OldValue  string
	NewValue  string
	Change    provider.Change
}

type OperationResult struct {
	Subdomain string
	Op        string
	Error     string
}

// Stage names the step of the run that failed.
type Stage string

const (
	StageZoneLookup    Stage = "zone lookup"
	StageAddressLookup Stage = "address lookup"
	StageRecordRead    Stage = "record read"
	StageRecordWrite   Stage = "record write"
	StageNotify        Stage = "notify"
)

// Sentinels matched by errors.Is against an *Error of the same stage.
var (
	ErrZoneLookup    = errors.New("zone lookup failed")
	ErrAddressLookup = errors.New("address lookup failed")
	ErrRecordRead    = errors.New("record read failed")
	ErrRecordWrite   = errors.New("record write failed")
	ErrNotify        = errors.New("notify failed")
)

// Process exit codes.
const (
	ExitOK = iota
	ExitZoneLookup
	ExitAddressLookup
	ExitRecordWrite
	ExitRecordRead
	ExitNotify
	ExitSetup
)

// Error is returned by Reconcile when a stage fails. It wraps the provider or
// transport error.
type Error struct {
	Stage     Stage
	Domain    string
	Subdomain string
	Err       error
}

func (e *Error) Error() string {
	if e.Subdomain != "" {
		return fmt.Sprintf("%s for %s.%s: %v", e.Stage, e.Subdomain, e.Domain, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", e.Stage, e.Domain, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Stage.sentinel()
}

func (s Stage) sentinel() error {
	switch s {
	case StageZoneLookup:
		return ErrZoneLookup
	case StageAddressLookup:
		return ErrAddressLookup
	case StageRecordRead:
		return ErrRecordRead
	case StageRecordWrite:
		return ErrRecordWrite
	case StageNotify:
		return ErrNotify
	}
	return nil
}

// ExitCode maps the error returned by Reconcile to the process exit code.
// Errors that did not come from a stage map to ExitSetup.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var rerr *Error
	if !errors.As(err, &rerr) {
		return ExitSetup
	}
	switch rerr.Stage {
	case StageZoneLookup:
		return ExitZoneLookup
	case StageAddressLookup:
		return ExitAddressLookup
	case StageRecordWrite:
		return ExitRecordWrite
	case StageRecordRead:
		return ExitRecordRead
	case StageNotify:
		return ExitNotify
	}
	return ExitSetup
}

package app

import (
	"errors"
	"fmt"
	"strings"
)

// Application-level error kinds. Match them with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrReconciliation = errors.New("renewal task reconciliation failed")
	ErrTenantBatch    = errors.New("recurring expense batch failed for tenant")
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReconciliationError reports a failed renewal-task reconciliation. It is logged by
// callers and never undoes the policy write that triggered it.
type ReconciliationError struct {
	TenantID string
	PolicyID string
	Err      error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile renewal tasks for policy %s (tenant %s): %v", e.PolicyID, e.TenantID, e.Err)
}

func (e *ReconciliationError) Unwrap() []error { return []error{ErrReconciliation, e.Err} }

// TenantBatchError reports a rolled-back tenant transaction in a recurrence run.
type TenantBatchError struct {
	TenantID  string
	Templates int
	Err       error
}

func (e *TenantBatchError) Error() string {
	return fmt.Sprintf("recurring expenses for tenant %s (%d templates): %v", e.TenantID, e.Templates, e.Err)
}

func (e *TenantBatchError) Unwrap() []error { return []error{ErrTenantBatch, e.Err} }

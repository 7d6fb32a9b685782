package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is; the typed errors below match them.
var (
	// ErrInvalidQuantity is returned for non-positive movements or a negative resulting quantity
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrDrugNotFound is returned when the catalog has no such drug
	ErrDrugNotFound = errors.New("drug not found")

	// ErrItemNotFound is returned when no inventory item exists for a (drug, location) key
	ErrItemNotFound = errors.New("inventory item not found")

	// ErrInsufficientStock is returned when a decrement exceeds on-hand quantity
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNoOpAdjustment is returned when an adjustment would not change the quantity
	ErrNoOpAdjustment = errors.New("adjustment does not change quantity")

	// ErrPartialFailure is returned when a best-effort operation was only partially applied
	ErrPartialFailure = errors.New("operation partially applied")

	// ErrConcurrentModification is returned when a transaction lost a race for the same item
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInconsistentRecord is returned when a record's before/after disagree with its type
	ErrInconsistentRecord = errors.New("inconsistent transaction record")
)

// InvalidQuantityError carries the rejected quantity
type InvalidQuantityError struct {
	Quantity int64
	Reason   string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d: %s", e.Quantity, e.Reason)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

// DrugNotFoundError names the unknown drug
type DrugNotFoundError struct {
	DrugID string
}

func (e *DrugNotFoundError) Error() string {
	return fmt.Sprintf("drug %s not found", e.DrugID)
}

func (e *DrugNotFoundError) Is(target error) bool { return target == ErrDrugNotFound }

// ItemNotFoundError names the missing (drug, location) key
type ItemNotFoundError struct {
	DrugID     string
	LocationID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("no inventory item for drug %s at location %s", e.DrugID, e.LocationID)
}

func (e *ItemNotFoundError) Is(target error) bool { return target == ErrItemNotFound }

// InsufficientStockError carries required vs. available so callers can report the shortfall
type InsufficientStockError struct {
	DrugID     string
	LocationID string
	Required   int64
	Available  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for drug %s at %s: required %d, available %d",
		e.DrugID, e.LocationID, e.Required, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Shortfall is how many units are missing
func (e *InsufficientStockError) Shortfall() int64 {
	return e.Required - e.Available
}

// NoOpAdjustmentError carries the current quantity and the attempted one
type NoOpAdjustmentError struct {
	DrugID     string
	LocationID string
	Current    int64
	Attempted  int64
}

func (e *NoOpAdjustmentError) Error() string {
	return fmt.Sprintf("adjustment of drug %s at %s to %d does not change current quantity %d",
		e.DrugID, e.LocationID, e.Attempted, e.Current)
}

func (e *NoOpAdjustmentError) Is(target error) bool { return target == ErrNoOpAdjustment }

// PartialFailureError reports which sub-steps of a best-effort operation
// committed before Failed broke. Nothing is rolled back.
type PartialFailureError struct {
	Operation string
	Committed []string
	Failed    string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s partially applied: committed [%s], failed at %q: %v",
		e.Operation, strings.Join(e.Committed, ", "), e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialFailure }

// ConcurrentModificationError means the storage transaction aborted because
// another writer touched the same item. Nothing was committed; the caller may retry.
type ConcurrentModificationError struct {
	Operation string
	Err       error
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s aborted by a concurrent modification: %v", e.Operation, e.Err)
}

func (e *ConcurrentModificationError) Unwrap() error { return e.Err }

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

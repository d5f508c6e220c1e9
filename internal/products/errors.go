package product

import (
	"errors"
	"fmt"
)

// Op names the aggregate-level operation that failed.
type Op string

const (
	OpCreate Op = "create product"
	OpUpdate Op = "update product"
	OpDelete Op = "delete product"
)

// OpError carries operation context around the underlying failure. The
// wrapped error keeps its code reachable through pkgerrors.As.
type OpError struct {
	Op        Op
	ProductID uint
	Err       error
}

func (e *OpError) Error() string {
	if e.ProductID == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %d: %v", e.Op, e.ProductID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func wrapOp(op Op, productID uint, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, ProductID: productID, Err: err}
}

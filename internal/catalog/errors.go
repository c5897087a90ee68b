package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Update (never by Delete) for an unknown ID.
	ErrNotFound = errors.New("not found")
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidReference means a foreign key names a record that does not exist.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrConflict means the operation is refused while dependents exist.
	ErrConflict = errors.New("conflict")
	// ErrStoreOperationFailed is an unexpected store failure, such as an
	// injected fault.
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// ValidationError lists the fields that failed a required-field check.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: missing %s", strings.Join(e.Fields, ", "))
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// requireFields collects the names of empty required fields.
type requireFields struct {
	missing []string
	reason  string
}

func (r *requireFields) str(name string, v *string) {
	if v == nil || strings.TrimSpace(*v) == "" {
		r.missing = append(r.missing, name)
	}
}

func (r *requireFields) present(name string, ok bool) {
	if !ok {
		r.missing = append(r.missing, name)
	}
}

func (r *requireFields) check(cond bool, reason string) {
	if !cond && r.reason == "" {
		r.reason = reason
	}
}

func (r *requireFields) err() error {
	if len(r.missing) == 0 && r.reason == "" {
		return nil
	}
	return &ValidationError{Fields: r.missing, Reason: r.reason}
}

// ValidateCreate checks a category draft before it is added.
func (p CategoryPatch) ValidateCreate() error {
	var r requireFields
	r.str("name", p.Name)
	return r.err()
}

// ValidateUpdate checks that a patch does not blank a required field.
func (p CategoryPatch) ValidateUpdate() error {
	var r requireFields
	if p.Name != nil {
		r.str("name", p.Name)
	}
	return r.err()
}

// ValidateCreate checks a sub-category draft before it is added.
func (p SubCategoryPatch) ValidateCreate() error {
	var r requireFields
	r.str("name", p.Name)
	r.str("mainCategoryId", p.MainCategoryID)
	return r.err()
}

// ValidateUpdate checks that a patch does not blank a required field.
func (p SubCategoryPatch) ValidateUpdate() error {
	var r requireFields
	if p.Name != nil {
		r.str("name", p.Name)
	}
	if p.MainCategoryID != nil {
		r.str("mainCategoryId", p.MainCategoryID)
	}
	return r.err()
}

// ValidateCreate checks a product draft before it is added.
func (p ProductPatch) ValidateCreate() error {
	var r requireFields
	r.str("name", p.Name)
	r.present("price", p.Price != nil)
	r.present("stock", p.Stock != nil)
	p.checkNumbers(&r)
	return r.err()
}

// ValidateUpdate checks that a patch does not blank a required field.
func (p ProductPatch) ValidateUpdate() error {
	var r requireFields
	if p.Name != nil {
		r.str("name", p.Name)
	}
	p.checkNumbers(&r)
	return r.err()
}

func (p ProductPatch) checkNumbers(r *requireFields) {
	if p.Price != nil {
		r.check(!p.Price.IsNegative(), "price must not be negative")
	}
	if p.Stock != nil {
		r.check(*p.Stock >= 0, "stock must not be negative")
	}
	if p.PackagingQty != nil {
		r.check(*p.PackagingQty >= 0, "packagingQty must not be negative")
	}
}

// Validate checks an order patch.
func (p OrderPatch) Validate() error {
	var r requireFields
	if p.Status != nil {
		r.check(p.Status.Valid(), fmt.Sprintf("unknown order status %q", *p.Status))
	}
	return r.err()
}

// ValidateCreate checks an offer draft before it is added.
func (p OfferPatch) ValidateCreate() error {
	var r requireFields
	r.str("title", p.Title)
	r.str("subtitle", p.Subtitle)
	p.checkStatus(&r)
	return r.err()
}

// ValidateUpdate checks that a patch does not blank a required field.
func (p OfferPatch) ValidateUpdate() error {
	var r requireFields
	if p.Title != nil {
		r.str("title", p.Title)
	}
	if p.Subtitle != nil {
		r.str("subtitle", p.Subtitle)
	}
	p.checkStatus(&r)
	return r.err()
}

func (p OfferPatch) checkStatus(r *requireFields) {
	if p.Status != nil {
		r.check(p.Status.Valid(), fmt.Sprintf("unknown offer status %q", *p.Status))
	}
}

// Validate checks a customer patch.
func (p CustomerPatch) Validate() error {
	var r requireFields
	if p.Status != nil {
		r.check(p.Status.Valid(), fmt.Sprintf("unknown customer status %q", *p.Status))
	}
	if p.CreditDays != nil {
		r.check(*p.CreditDays >= 0, "creditDays must not be negative")
	}
	return r.err()
}

package event

import (
	"errors"
	"fmt"
)

type CategoryChanged struct {
	CategoryID int64     `json:"category_id"`
	Operation  Operation `json:"operation"`
	ParentIDs  []int64   `json:"parent_ids,omitempty"` // parents before and after a move
}

func (e *CategoryChanged) EventType() string {
	return "CategoryChanged"
}

func (e *CategoryChanged) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}

func (e *CategoryChanged) Validate() error {
	if e.CategoryID <= 0 {
		return errors.New("category event without category id")
	}
	if !e.Operation.Valid() {
		return fmt.Errorf("unknown operation %q", e.Operation)
	}
	return nil
}

type ProductChanged struct {
	ProductID   int64     `json:"product_id"`
	Operation   Operation `json:"operation"`
	CategoryIDs []int64   `json:"category_ids,omitempty"`
}

func (e *ProductChanged) EventType() string {
	return "ProductChanged"
}

func (e *ProductChanged) EventValue() ([]byte, error) {
	return DefaultEventValue(e)
}

func (e *ProductChanged) Validate() error {
	if e.ProductID <= 0 {
		return errors.New("product event without product id")
	}
	if !e.Operation.Valid() {
		return fmt.Errorf("unknown operation %q", e.Operation)
	}
	return nil
}

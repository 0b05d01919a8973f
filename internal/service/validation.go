package service

import (
	"errors"
	"strings"
	"unicode"
)

// Errors returned by delivery-detail validation.
var (
	ErrInvalidFullName = errors.New("fullname must have at least 3 words")
	ErrInvalidContact  = errors.New("contact must be exactly 11 digits")
	ErrInvalidAddress  = errors.New("address is required")
)

// ValidateDeliveryDetails checks the customer-facing delivery fields.
// Fullname needs first, middle, and last name; contact is a local
// 11-digit mobile number (e.g. 09171234567).
func ValidateDeliveryDetails(fullname, contact, address string) error {
	if len(strings.Fields(fullname)) < 3 {
		return ErrInvalidFullName
	}
	if len(contact) != 11 {
		return ErrInvalidContact
	}
	for _, r := range contact {
		if !unicode.IsDigit(r) {
			return ErrInvalidContact
		}
	}
	if strings.TrimSpace(address) == "" {
		return ErrInvalidAddress
	}
	return nil
}

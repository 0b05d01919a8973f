package service_test

import (
	"errors"
	"testing"

	"github.com/lutong-bahay/api/internal/service"
)

func TestValidateDeliveryDetails(t *testing.T) {
	tests := []struct {
		name     string
		fullname string
		contact  string
		address  string
		wantErr  error
	}{
		{
			name:     "valid",
			fullname: "Juan Miguel Dela Cruz",
			contact:  "09171234567",
			address:  "123 Mabini St, Quezon City",
			wantErr:  nil,
		},
		{
			name:     "two word name",
			fullname: "Juan Cruz",
			contact:  "09171234567",
			address:  "123 Mabini St",
			wantErr:  service.ErrInvalidFullName,
		},
		{
			name:     "empty name",
			fullname: "",
			contact:  "09171234567",
			address:  "123 Mabini St",
			wantErr:  service.ErrInvalidFullName,
		},
		{
			name:     "extra whitespace still three words",
			fullname: "  Juan   Miguel   Cruz  ",
			contact:  "09171234567",
			address:  "123 Mabini St",
			wantErr:  nil,
		},
		{
			name:     "contact too short",
			fullname: "Juan Miguel Cruz",
			contact:  "0917123456",
			address:  "123 Mabini St",
			wantErr:  service.ErrInvalidContact,
		},
		{
			name:     "contact too long",
			fullname: "Juan Miguel Cruz",
			contact:  "091712345678",
			address:  "123 Mabini St",
			wantErr:  service.ErrInvalidContact,
		},
		{
			name:     "contact with letters",
			fullname: "Juan Miguel Cruz",
			contact:  "0917abc4567",
			address:  "123 Mabini St",
			wantErr:  service.ErrInvalidContact,
		},
		{
			name:     "contact with plus prefix",
			fullname: "Juan Miguel Cruz",
			contact:  "+9171234567",
			address:  "123 Mabini St",
			wantErr:  service.ErrInvalidContact,
		},
		{
			name:     "empty address",
			fullname: "Juan Miguel Cruz",
			contact:  "09171234567",
			address:  "   ",
			wantErr:  service.ErrInvalidAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateDeliveryDetails(tt.fullname, tt.contact, tt.address)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

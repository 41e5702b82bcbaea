package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestDuplicateEntry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			"duplicate key",
			&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice@example.com' for key 'uq_users_email'"},
			true,
		},
		{
			"wrapped duplicate key",
			fmt.Errorf("inserting user: %w", &mysql.MySQLError{Number: 1062}),
			true,
		},
		{
			"other mysql error",
			&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"},
			false,
		},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := duplicateEntry(tt.err); got != tt.want {
				t.Errorf("duplicateEntry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

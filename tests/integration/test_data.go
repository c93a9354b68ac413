package integration

import (
	"fmt"
	"time"
)

// TestUser generates unique test user credentials using timestamp
func TestUser(suffix string) (email, password string) {
	ts := time.Now().Unix()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}

// TenantID returns a pointer to the given club identifier, matching the
// nullable column on users and login attempts.
func TenantID(id string) *string {
	return &id
}

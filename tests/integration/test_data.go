package integration

import (
	"fmt"
	"time"
)

// TestEmail generates a unique test email using a nanosecond timestamp
func TestEmail(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}

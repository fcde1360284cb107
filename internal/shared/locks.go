package shared

import "fmt"

// TransferLockKey builds the redis key that marks a file transfer in flight
// for one session.
func TransferLockKey(sessionID string) string {
	return fmt.Sprintf("grantdesk:transfer:%s:lock", sessionID)
}

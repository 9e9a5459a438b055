package gateway

import "strings"

// rejectionReasons are the provider error fragments that indicate a
// chain-level rejection of the submitted transaction, as opposed to a
// transport failure. Rejections are terminal for the attempt and are
// never retried automatically.
var rejectionReasons = []string{
	"nonce too low",
	"nonce too high",
	"insufficient funds",
	"replacement transaction underpriced",
	"transaction underpriced",
	"already known",
	"exceeds block gas limit",
	"intrinsic gas too low",
	"max fee per gas less than block base fee",
}

// classifyBroadcastError extracts the rejection reason from a provider
// error, or reports false for transport-level failures.
func classifyBroadcastError(err error) (string, bool) {
	msg := strings.ToLower(err.Error())
	for _, reason := range rejectionReasons {
		if strings.Contains(msg, reason) {
			return reason, true
		}
	}
	return "", false
}

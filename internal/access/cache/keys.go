package cache

import "fmt"

// Key construction lives in one place so the invalidation patterns can
// never drift from the write paths.

func refreshKey(userID, sessionID string) string {
	return fmt.Sprintf("refresh:%s:%s", userID, sessionID)
}

func refreshUserPattern(userID string) string {
	return fmt.Sprintf("refresh:%s:*", userID)
}

func denyKey(jti string) string {
	return fmt.Sprintf("jti_deny:%s", jti)
}

func oauthStateKey(state string) string {
	return fmt.Sprintf("oauth_state:%s", state)
}

func passwordResetKey(fingerprint string) string {
	return fmt.Sprintf("pwd_reset:%s", fingerprint)
}

func emailVerifyKey(fingerprint string) string {
	return fmt.Sprintf("email_verify:%s", fingerprint)
}

func membershipKey(orgID, userID string) string {
	return fmt.Sprintf("membership:%s:%s", orgID, userID)
}

func membershipOrgPattern(orgID string) string {
	return fmt.Sprintf("membership:%s:*", orgID)
}

func membershipUserPattern(userID string) string {
	return fmt.Sprintf("membership:*:%s", userID)
}

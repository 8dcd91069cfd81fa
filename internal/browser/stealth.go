package browser

import "strings"

// initScript hides the usual automation fingerprints before any site script runs.
const initScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', { get: () => ['zh-TW', 'zh', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
`

// isLaunchLockError matches the messages Chrome prints when another instance holds
// the profile.
func isLaunchLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Opening in existing browser session") ||
		strings.Contains(msg, "ProcessSingleton") ||
		strings.Contains(msg, "SingletonLock")
}

func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access is denied") || strings.Contains(msg, "permission denied")
}

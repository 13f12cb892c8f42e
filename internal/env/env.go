// Package env reads CIPHERLAB_* settings from the environment and still
// honours the CLASSICRYPT_* names used by earlier releases.
package env

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	Prefix       = "CIPHERLAB_"
	LegacyPrefix = "CLASSICRYPT_"
)

var (
	warnLogger func(format string, args ...any) = func(format string, args ...any) {
		log.Warn().Msgf(format, args...)
	}
	warnMu     sync.Mutex
	warnedKeys sync.Map
)

// Lookup returns the value of newKey if it exists. When the legacy oldKey is
// present it is returned instead and a deprecation warning is logged once.
func Lookup(newKey, oldKey string) (string, bool) {
	if v, ok := os.LookupEnv(newKey); ok {
		return v, true
	}
	if oldKey == "" {
		return "", false
	}
	if v, ok := os.LookupEnv(oldKey); ok {
		logDeprecated(oldKey, newKey)
		return v, true
	}
	return "", false
}

// Setting looks up CIPHERLAB_<name>, falling back to CLASSICRYPT_<name>.
func Setting(name string) (string, bool) {
	return Lookup(Prefix+name, LegacyPrefix+name)
}

func logDeprecated(oldKey, newKey string) {
	onceIface, _ := warnedKeys.LoadOrStore(oldKey, &sync.Once{})
	once := onceIface.(*sync.Once)
	once.Do(func() {
		warnMu.Lock()
		logger := warnLogger
		warnMu.Unlock()
		logger("%s is deprecated; use %s", oldKey, newKey)
	})
}

// ResetWarningsForTesting clears the cached once guards so tests can verify
// warning behaviour deterministically.
func ResetWarningsForTesting() {
	warnMu.Lock()
	warnedKeys = sync.Map{}
	warnMu.Unlock()
}

// SetWarnLoggerForTesting swaps the logger used for warnings. The returned
// function restores the previous logger and should be deferred in tests.
func SetWarnLoggerForTesting(fn func(format string, args ...any)) (restore func()) {
	warnMu.Lock()
	previous := warnLogger
	warnLogger = fn
	warnMu.Unlock()
	return func() {
		warnMu.Lock()
		warnLogger = previous
		warnMu.Unlock()
	}
}

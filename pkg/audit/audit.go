package audit

import (
	"fmt"
	"strings"
	"sync"
)

var (
	// globalWriter is the default audit writer.
	globalWriter Writer = NopWriter{}
	globalMu     sync.RWMutex

	// enabled tracks whether audit logging is active.
	enabled bool
)

// Init initializes the global audit logger with the given writer.
// Must be called before any audit events are logged.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if w == nil {
		globalWriter = NopWriter{}
		enabled = false
		return nil
	}

	globalWriter = w
	enabled = true
	return nil
}

// InitFile initializes the global audit logger with a file writer.
// This is a convenience function for the common case.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}

	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}

	return Init(w)
}

// Close closes the global audit writer.
// Should be called when the application exits.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWriter != nil {
		err := globalWriter.Close()
		globalWriter = NopWriter{}
		enabled = false
		return err
	}
	return nil
}

// Enabled returns whether audit logging is active.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes an audit event to the global writer.
// Returns an error if the write fails.
//
// IMPORTANT: If audit logging is enabled and this returns an error,
// the calling operation SHOULD fail. Audit logs are critical for
// compliance and security.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()

	return w.Write(event)
}

// MustLog writes an audit event and returns an error suitable for
// failing the parent operation if audit logging fails.
//
// Usage:
//
//	if err := audit.MustLog(event); err != nil {
//	    return err // Operation fails if audit fails
//	}
func MustLog(event *Event) error {
	if err := Log(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

// LogKeyInstalled logs the installation of a network's credentials.
func LogKeyInstalled(network, clientAlias string, caAliases []string, success bool, reason string) error {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}

	event := NewEvent(EventKeyInstalled, result).
		WithObject(Object{
			Type:    "key_entry",
			Alias:   clientAlias,
			Network: network,
			Aliases: caAliases,
		}).
		WithContext(Context{
			Reason: reason,
		})

	return MustLog(event)
}

// LogKeyRemoved logs the removal of a network's credentials.
func LogKeyRemoved(network string, aliases []string, forced, success bool) error {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}

	event := NewEvent(EventKeyRemoved, result).
		WithObject(Object{
			Type:    "key_entry",
			Network: network,
			Aliases: aliases,
		}).
		WithContext(Context{
			Forced: forced,
		})

	return MustLog(event)
}

// LogGrantResolved logs a key pair grant resolution.
func LogGrantResolved(alias string, user int32, granted bool) error {
	result := ResultSuccess
	if !granted {
		result = ResultFailure
	}

	event := NewEvent(EventGrantResolved, result).
		WithObject(Object{
			Type:  "grant",
			Alias: alias,
		}).
		WithContext(Context{
			User:    user,
			Granted: granted,
		})

	return MustLog(event)
}

// LogSuiteBValidated logs a Suite-B policy evaluation.
func LogSuiteBValidated(network, cipher string, success bool, reason string) error {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}

	event := NewEvent(EventSuiteBValidated, result).
		WithObject(Object{
			Type:    "certificate",
			Network: network,
		}).
		WithContext(Context{
			Cipher: cipher,
			Reason: reason,
		})

	return MustLog(event)
}

// LogAuthFailed logs an authorization failure.
func LogAuthFailed(aliases []string, reason string) error {
	event := NewEvent(EventAuthFailed, ResultFailure).
		WithObject(Object{
			Type:  "key_entry",
			Alias: strings.Join(aliases, ","),
		}).
		WithContext(Context{
			Reason: reason,
		})

	return MustLog(event)
}

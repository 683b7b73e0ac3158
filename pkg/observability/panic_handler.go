package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers from a panic and logs it with structured logging
//
// Usage in defer statements:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "replica health check")
//	    // ... code that might panic
//	}()
//
// The panic is not re-raised.
func RecoverPanic(logger logrus.FieldLogger, context string) {
	if r := recover(); r != nil {
		logger.WithFields(logrus.Fields{
			"panic":   fmt.Sprint(r),
			"stack":   string(debug.Stack()),
			"context": context,
		}).Error("PANIC recovered")
	}
}

package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/monitoring"
)

// SafeGo runs fn on its own goroutine and logs any panic instead of crashing
// the node.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in: ", name, " ", r, " ", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// SafeGoWithPanic is SafeGo for goroutines the node cannot live without.
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in: ", name, " ", r, " ", string(debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}

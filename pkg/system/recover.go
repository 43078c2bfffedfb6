// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"go.uber.org/zap"
)

// Recover logs a panic in a background goroutine instead of crashing the process.
// Use it as the first deferred call of the goroutine.
func Recover(component string) {
	if r := recover(); r != nil {
		zap.S().Errorw("Recovered from panic", "component", component, "panic", r, zap.Stack("stack"))
	}
}

// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import "github.com/decred/slog"

// log is this package's logger, defaulted to discard output until
// UseLogger is called.
var log = slog.Disabled

// UseLogger wires logger as the package-level logger used by addrmgr.
func UseLogger(logger slog.Logger) {
	log = logger
}

// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package recovery converts panics raised inside worker goroutines into
// ordinary errors.
//
// The install worker pool runs every fetch/extract job through Do so that a
// panicking job fails that job (and stops new work from being issued) instead
// of crashing the process and leaving a half-written staging directory.
//
//	g.Go(func() error {
//		return recovery.Do(func() error { return job(ctx) })
//	})
package recovery

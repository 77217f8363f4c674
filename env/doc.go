// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package env abstracts environment variable access so that configuration
overrides can be tested without touching the process environment.

Production code uses OSReader; tests use the generated mock in the mocks
sub-package or a MapReader:

	cfg, err := config.Load(path, env.MapReader{
		"TOOLHIVE_SKILLS_MAX_DEPTH": "4",
	})
*/
package env

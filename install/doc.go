// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package install composes dependency resolution, bundle download, extraction
and lock file persistence into a single Install operation.

An install moves through the states planning, fetching, extracting,
persisting and done, or ends in failed:

	cfg, err := config.Load("", &env.OSReader{})
	if err != nil {
		return err
	}
	orch, err := install.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	res, err := orch.Install(ctx, "pdf-processor", install.Options{})

Nothing is downloaded or written until the whole dependency tree has been
resolved, checked against the install policy and ordered. Bundles are then
fetched and extracted on a bounded pool; a skill starts only after its
dependencies are installed, so only unrelated skills run side by side. Skills already recorded in the lock
file at the resolved version are skipped, so repeating an install performs
no downloads. The lock file is written once, at the end of a successful run.
*/
package install

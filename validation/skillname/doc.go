// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package skillname validates skill names.

Skill names are keys in the dependency graph, keys in the lock file and the
directory names skills are installed under, so a name that is accepted here
is always safe to join onto an install root.

	if err := skillname.Validate("pdf-tools"); err != nil {
		// reject the name
	}

Valid names must:
  - Be 1 to 128 bytes long
  - Start with a lowercase letter or digit
  - Contain only lowercase letters, digits, '.', '_' and '-'
  - Not contain ".." (so they can never traverse out of the install root)
*/
package skillname

// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package skillname

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxLength is the maximum length of a skill name in bytes.
const MaxLength = 128

var validNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate checks that name is a well-formed skill name.
func Validate(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("skill name cannot be empty or consist only of whitespace")
	}

	if strings.Contains(name, "\x00") {
		return fmt.Errorf("skill name cannot contain null bytes")
	}

	if len(name) > MaxLength {
		return fmt.Errorf("skill name exceeds maximum length of %d bytes", MaxLength)
	}

	if name != strings.ToLower(name) {
		return fmt.Errorf("skill name must be lowercase: %q", name)
	}

	if !validNameRegex.MatchString(name) {
		return fmt.Errorf("skill name must start with a letter or digit and contain only "+
			"lowercase alphanumeric characters, dots, underscores and dashes: %q", name)
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("skill name cannot contain consecutive dots: %q", name)
	}

	return nil
}

// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// utils.go - Identifier validation for Graph URL construction.

package graph

import (
	"fmt"
	"strings"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

const maxIDLength = 100

// SanitizeOneNoteID validates OneNote IDs before they are interpolated into
// request paths. IDs contain alphanumerics, hyphens and exclamation marks,
// e.g. "0-4D24C77F19546939!40109".
func SanitizeOneNoteID(id, idType string) (string, error) {
	sanitizedID := strings.TrimSpace(id)
	if sanitizedID == "" {
		return "", fmt.Errorf("%s cannot be empty", idType)
	}

	for _, char := range sanitizedID {
		if !isIDRune(char) {
			logging.GraphLogger.Debug("Invalid character in ID", "id_type", idType, "char", string(char))
			return "", fmt.Errorf("%s contains invalid characters", idType)
		}
	}

	if len(sanitizedID) > maxIDLength {
		return "", fmt.Errorf("%s is too long", idType)
	}
	return sanitizedID, nil
}

func isIDRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '-' || r == '!':
		return true
	}
	return false
}

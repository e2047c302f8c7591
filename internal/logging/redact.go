// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package logging

import "strings"

// RedactCredential masks a "key:secret" credential for log output. The key
// keeps its first and last four characters; the secret is never shown.
//
//	RedactCredential("abcd1234efgh5678:topsecret") == "abcd...5678:***"
func RedactCredential(credential string) string {
	if credential == "" {
		return ""
	}
	key, _, _ := strings.Cut(credential, ":")
	return RedactToken(key) + ":***"
}

// RedactToken shows the first and last four characters of long values and
// hides short ones entirely.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

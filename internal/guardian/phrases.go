// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package guardian

// DefaultApprovalPhrases returns the phrase table used to detect a turn
// ending that claims a publish happened. The assistant speaks Spanish to
// its users but occasionally answers in English, so both are covered.
// Matching is case-insensitive substring over the accumulated turn text.
//
// The list is deliberately a table rather than inline literals so
// deployments can extend it through configuration.
func DefaultApprovalPhrases() []string {
	return []string{
		"lo publico",
		"lo publicamos",
		"lo aprobamos",
		"queda publicado",
		"ya está publicado",
		"ya esta publicado",
		"publicado con éxito",
		"publicado con exito",
		"procedo a publicar",
		"publicándolo ahora",
		"publicandolo ahora",
		"i'll publish it",
		"publishing it now",
		"it's published",
		"it is now published",
		"published successfully",
	}
}

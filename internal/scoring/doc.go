// Package scoring assigns a confidence in (0,1] to accepted VIN tokens.
//
// The base weight comes from the recognizer: each barcode symbology has a
// fixed weight, OCR has its own, and a confidence reported by the recognizer
// replaces either. Independent multipliers then penalize repaired tokens,
// tokens that depended on confusable-letter substitution, and small barcode
// detections, or reward large ones. Scores at or below the session minimum
// are rejected.
//
// SourceScorer pairs the shared weights with one source's adaptive state (a
// miss streak and a suggested zoom ratio). Each source in a session owns its
// own SourceScorer; state is never shared across sources.
package scoring

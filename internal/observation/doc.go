// Package observation describes what recognizers hand to the engine.
//
// A Raw observation is one decoded string (plus optional alternate decoding,
// OCR lines, symbology, bounding box, and recognizer confidence) tagged with
// its source. Observations are immutable and consumed once. The package also
// decodes recorded JSON Lines streams and pumps several of them concurrently
// into a consumer, which is how the CLI replays captured scans.
package observation

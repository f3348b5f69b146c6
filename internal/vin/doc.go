// Package vin turns raw recognizer text into 17-character VIN tokens and
// decides whether a token is acceptable.
//
// Normalization folds compatibility characters to ASCII, maps the confusable
// letters O, I and Q to 0, 1 and 0, drops whitespace and separator
// punctuation, and yields every 17-character window of each legal run.
// Validation applies the North American check digit (position 9). Policy
// selects between the strict check-digit rule and the lenient shape-only
// rule; a session uses exactly one of them.
//
// Everything here is pure and safe for concurrent use.
package vin

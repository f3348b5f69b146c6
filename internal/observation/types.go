package observation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Source identifies the recognizer family that produced an observation.
type Source int

const (
	SourceBarcode Source = iota + 1
	SourceOpticalText
)

// ParseSource accepts "barcode" and "ocr" (plus a few spellings recorders use).
func ParseSource(value string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "barcode", "bar_code":
		return SourceBarcode, nil
	case "ocr", "text", "optical_text", "label":
		return SourceOpticalText, nil
	default:
		return 0, fmt.Errorf("unknown observation source %q", value)
	}
}

func (s Source) String() string {
	switch s {
	case SourceBarcode:
		return "barcode"
	case SourceOpticalText:
		return "ocr"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	if s != SourceBarcode && s != SourceOpticalText {
		return nil, fmt.Errorf("invalid observation source %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Symbology is the recognizer hint: a barcode format or "ocr".
type Symbology string

const (
	SymbologyCode128    Symbology = "code128"
	SymbologyCode39     Symbology = "code39"
	SymbologyPDF417     Symbology = "pdf417"
	SymbologyDataMatrix Symbology = "data_matrix"
	SymbologyQRCode     Symbology = "qr_code"
	SymbologyEAN13      Symbology = "ean13"
	SymbologyOCR        Symbology = "ocr"
)

// NormalizeSymbology lowercases a hint and folds common spellings.
func NormalizeSymbology(value string) Symbology {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer("-", "_", " ", "_").Replace(v)
	switch v {
	case "code_128":
		return SymbologyCode128
	case "code_39":
		return SymbologyCode39
	case "pdf_417":
		return SymbologyPDF417
	case "datamatrix":
		return SymbologyDataMatrix
	case "qr", "qrcode":
		return SymbologyQRCode
	case "ean_13":
		return SymbologyEAN13
	}
	return Symbology(v)
}

// Box is a detection bounding box in pixels.
type Box struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Line is one OCR text line. Angle is the skew in degrees; nil means the
// recognizer did not report one.
type Line struct {
	Text  string   `json:"text"`
	Angle *float64 `json:"angle,omitempty"`
}

// Raw is one recognizer result.
type Raw struct {
	Text    string    `json:"text"`
	AltText string    `json:"alt_text,omitempty"`
	Lines   []Line    `json:"lines,omitempty"`
	Source  Source    `json:"source"`
	Hint    Symbology `json:"hint,omitempty"`
	Box     *Box      `json:"box,omitempty"`
	// Confidence is the recognizer's own score; zero means absent.
	Confidence float64   `json:"confidence,omitempty"`
	ObservedAt time.Time `json:"observed_at,omitzero"`
}

// UnmarshalJSON normalizes the symbology hint while decoding.
func (r *Raw) UnmarshalJSON(data []byte) error {
	type alias Raw
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*r = Raw(decoded)
	r.Hint = NormalizeSymbology(string(r.Hint))
	return nil
}

// Validate reports structural problems that make the observation unusable.
func (r Raw) Validate() error {
	if r.Source != SourceBarcode && r.Source != SourceOpticalText {
		return fmt.Errorf("observation source is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("observation confidence %.3f outside [0,1]", r.Confidence)
	}
	if r.Box != nil && (r.Box.Width < 0 || r.Box.Height < 0) {
		return fmt.Errorf("observation box dimensions must be non-negative")
	}
	return nil
}

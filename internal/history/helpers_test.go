package history_test

import "vinscan/internal/observation"

func observationFor(value string) observation.Raw {
	return observation.Raw{
		Text:   value,
		Source: observation.SourceBarcode,
		Hint:   observation.SymbologyQRCode,
	}
}

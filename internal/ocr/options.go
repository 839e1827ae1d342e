package ocr

import (
	"github.com/wyyywsd/FinderEye/internal/config"
)

// DefaultContrast is the contrast change applied before recognition.
const DefaultContrast = 0.3

// Options configures the Tesseract text detector.
type Options struct {
	TessdataPrefix string
	Languages      []string
	MatchMode      string
	Contrast       float64
}

// OptionsFromConfig builds detector options from process configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TessdataPrefix: cfg.TessdataPrefix,
		Languages:      Languages(cfg.OCRLanguages),
		MatchMode:      cfg.TextMatchMode,
		Contrast:       DefaultContrast,
	}
}

// Info describes the OCR backend.
type Info struct {
	Available bool     `json:"available"`
	Version   string   `json:"version,omitempty"`
	Backend   string   `json:"backend"`
	Languages []string `json:"languages,omitempty"`
	Error     string   `json:"error,omitempty"`
}

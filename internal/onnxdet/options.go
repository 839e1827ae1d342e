package onnxdet

import (
	"github.com/wyyywsd/FinderEye/internal/config"
)

// Options configures the ONNX object detector.
type Options struct {
	ModelPath   string
	LibraryPath string
	InputSize   int
	Labels      []string
	// Sessions is the number of model sessions kept warm. Each detector call
	// holds one for its duration.
	Sessions   int
	InputName  string
	OutputName string
	IOU        float64
}

// OptionsFromConfig builds detector options from process configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	labels := cfg.ModelLabels
	if len(labels) == 0 {
		labels = COCOLabels
	}
	return Options{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.ORTLibraryPath,
		InputSize:   cfg.ModelInputSize,
		Labels:      labels,
		Sessions:    cfg.Workers,
		InputName:   "images",
		OutputName:  "output0",
		IOU:         DefaultIOU,
	}
}

// Package ocr finds a keyword in images with the Tesseract OCR engine.
//
// Tesseract is reached through gosseract/v2 and needs cgo plus an installed
// libtesseract. Builds without cgo still compile; New then reports the
// detector as unavailable and text queries return nothing.
//
// # Prerequisites
//
// Tesseract and its language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Set FINDEREYE_TESSDATA_PREFIX when the traineddata files live outside the
// default search path.
//
// # Matching
//
// Recognition runs at two levels: text lines and words. A line matches when
// its text contains the keyword, ignoring case. In "line" mode the whole
// line box is reported. In "span" mode the box is narrowed to the run of
// words that spell the keyword, falling back to the line box when the words
// do not line up with the line text.
//
// Boxes are returned normalized to the image, with a bottom-left origin, and
// confidences are scaled from Tesseract's 0-100 to 0-1.
package ocr

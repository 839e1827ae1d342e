// Package imaging holds the raster side of detection: decoding and orienting
// camera frames, letterboxing regions into the detector's input, cropping
// tiles and drawing results.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Rectangles follow
// image.Rectangle: Min is inclusive, Max exclusive.
//
// Boxes crossing the package boundary (Annotation, tile crops, letterbox
// mapping) are geometry.Box values: normalized to [0,1] with a bottom-left
// origin. Conversion between the two conventions happens only here and in
// the geometry package.
//
// # Letterboxing
//
// PlanLetterbox computes the uniform scale and padding that fit a region into
// the detector input; Letterbox renders it with the pad color, and
// MapDetectorBoxToSource / MapSourceBoxToDetector move boxes across the plan.
//
// # Frames
//
// DecodeFrame and FromRGBA turn encoded or raw RGBA bytes into an upright
// image, applying the EXIF Orientation the capture reported.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function is
// stateless and never mutates its input.
package imaging

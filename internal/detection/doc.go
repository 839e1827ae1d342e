// Package detection defines the detection model shared by every stage of the
// pipeline and the algorithms that post-process detector output.
//
// # Types
//
// Detection is the unit every stage exchanges: a label, a confidence in
// [0,1], a Kind (object or text) and a geometry.Box in frame-normalized
// coordinates with a bottom-left origin. Detectors themselves are external
// collaborators described by the ObjectDetector and TextDetector interfaces.
//
// # Fusion
//
// Tiled inference sees the same object several times and sometimes sees it cut
// in two by a tile edge. Fuser resolves both in two passes:
//
//  1. Fragment merge: boxes that intersect, or that sit next to each other
//     with a small gap and a large shared extent, collapse into their bounding
//     box. The most confident member supplies label and confidence.
//  2. Suppression: greedy NMS by descending confidence, with the IOU
//     threshold capped at MaxIOUThreshold, plus a containment rule that drops
//     boxes mostly inside a kept one.
//
// # Filtering
//
// FilterByQuery applies the confidence threshold and keyword match.
// ArtifactFilter optionally removes edge-hugging and tiny boxes from live
// results.
//
// # Errors
//
// Error carries an ErrorCode and the tile region it belongs to; errors.Is
// matches it against ErrDetectorUnavailable, ErrEmptyRegion, ErrSuperseded
// and ErrInvalidFrame.
package detection

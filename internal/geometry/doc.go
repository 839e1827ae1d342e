// Package geometry holds the coordinate math shared by the detection
// pipeline.
//
// # Coordinate Spaces
//
// Three spaces are in play:
//   - Pixel space: integer rectangles with a top-left origin, as image.Image
//     uses them.
//   - Normalized space: Box values in [0,1] relative to a frame, with a
//     bottom-left origin (Y grows upward). Every detection leaving the
//     pipeline is in this space.
//   - Tile space: a Box normalized to a Tile instead of the whole frame.
//
// MapCropRegionToNormalized and TileToCropRect convert between pixel and
// normalized space; MapTileBoxToGlobal lifts a tile-space box into frame
// space. Letterbox mapping lives in the imaging package, next to the code that
// produces the letterboxed raster.
package geometry

// Package server exposes the detection pipeline as an MCP (Model Context
// Protocol) tool server.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so they never corrupt the protocol stream.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Detection:
//   - find_in_image: Static-photo search, tiled for large images, optional annotated copy
//   - stream_frame: Submit one live frame through the pacer
//
// Stream control:
//   - set_suspended: Pause or resume the stream (editing or zooming)
//   - reset_stream: Drop cached tile results and restart tile rotation
//   - stream_stats: Pacer state, counters, worker usage, tile coverage
//
// Settings:
//   - get_settings, update_settings
//
// Inspection:
//   - image_dimensions: Upright width and height, and whether the photo is tiled
//   - crop_tile: The exact crop a detector tile sees, as base64 PNG
//
// # Coordinates
//
// Every box is normalized to the image and uses a bottom-left origin:
// x and y locate the box's lower-left corner, w and h its size.
//
// # Error Handling
//
// A line that is not valid JSON gets a -32700 parse error with a null id.
// Tool execution errors are returned as JSON-RPC error responses with code
// -32000. Pipeline errors such as a superseded static request carry their
// code (for example SUPERSEDED) in the error data.
package server

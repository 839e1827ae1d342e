package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func queryProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": pathProperty(),
		"keyword": map[string]interface{}{
			"type":        "string",
			"description": "What to look for: an object label such as \"cup\", or text when mode is \"text\"",
		},
		"mode": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"object", "text"},
			"description": "Detection mode. Default object",
			"default":     "object",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	find := queryProperties()
	find["annotate"] = map[string]interface{}{
		"type":        "string",
		"description": "Optional output path; the image is written there with the found boxes drawn on it",
	}

	return []Tool{
		// Detection
		{
			Name: "find_in_image",
			Description: "Find a keyword in a still photo. Large photos are split into overlapping tiles " +
				"so small objects are not lost. Boxes are normalized to the image with a bottom-left origin.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": find,
				"required":   []string{"path", "keyword"},
			},
		},
		{
			Name: "stream_frame",
			Description: "Submit one live-stream frame. Frames arriving faster than the configured rate, or " +
				"while a previous frame is still being processed, are skipped. Returns the fused view across recent tiles.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": queryProperties(),
				"required":   []string{"path", "keyword"},
			},
		},

		// Stream control
		{
			Name:        "set_suspended",
			Description: "Pause or resume the live stream, for example while the user edits the keyword or the camera zooms.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"suspended": map[string]interface{}{
						"type":        "boolean",
						"description": "true to pause, false to resume",
					},
					"reason": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"editing", "zooming"},
						"description": "Why the stream is paused. Default editing",
						"default":     "editing",
					},
				},
				"required": []string{"suspended"},
			},
		},
		{
			Name:        "reset_stream",
			Description: "Drop all live-stream state: cached tile results, tile rotation and pacing.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "stream_stats",
			Description: "Report pacing state, admission counters, worker usage and tile coverage of the live stream.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Settings
		{
			Name:        "get_settings",
			Description: "Get the current detection settings.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "update_settings",
			Description: "Change detection settings. Omitted fields keep their values; the next detection uses the new values.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"confidence_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum confidence, 0 to 1",
					},
					"scanning_fps": map[string]interface{}{
						"type":        "number",
						"description": "Live detection rate while nothing is found",
					},
					"tracking_fps": map[string]interface{}{
						"type":        "number",
						"description": "Live detection rate while something is found",
					},
					"high_accuracy": map[string]interface{}{
						"type":        "boolean",
						"description": "Slice frames into tiles for small-object recall",
					},
				},
			},
		},

		// Inspection
		{
			Name:        "image_dimensions",
			Description: "Get the upright width and height of an image file and whether it would be tiled.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "crop_tile",
			Description: "Crop one detection tile from an image and return it as base64-encoded PNG, to see exactly what the detector sees.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Tile index; 0 is the full frame",
					},
					"grid": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"static", "rotating"},
						"description": "Which tile set to index. Default static",
						"default":     "static",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "index"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}

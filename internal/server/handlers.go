package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/geometry"
	"github.com/wyyywsd/FinderEye/internal/imaging"
	"github.com/wyyywsd/FinderEye/internal/pipeline"
	"github.com/wyyywsd/FinderEye/internal/roi"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// Coded pipeline errors carry their code in the error data.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	out, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Debug().Str("tool", params.Name).Err(err).Msg("tool failed")
		var de *detection.Error
		if errors.As(err, &de) {
			return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", map[string]interface{}{
				"code":    de.Code,
				"message": err.Error(),
			})
		}
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return textResult(req.ID, out)
}

// textResult wraps v as the single JSON text item of a tools/call result.
func textResult(id, v interface{}) *MCPResponse {
	return result(id, map[string]interface{}{
		"content": []map[string]interface{}{{"type": "text", "text": mustMarshalJSON(v)}},
	})
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Detection
	case "find_in_image":
		return s.handleFindInImage(ctx, args)
	case "stream_frame":
		return s.handleStreamFrame(ctx, args)

	// Stream control
	case "set_suspended":
		return s.handleSetSuspended(args)
	case "reset_stream":
		return s.handleResetStream()
	case "stream_stats":
		return s.requirePipeline(func(p *pipeline.Pipeline) (interface{}, error) { return p.Stats(), nil })

	// Settings
	case "get_settings":
		return s.handleGetSettings()
	case "update_settings":
		return s.handleUpdateSettings(args)

	// Inspection
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "crop_tile":
		return s.handleCropTile(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func (s *Server) requirePipeline(fn func(*pipeline.Pipeline) (interface{}, error)) (interface{}, error) {
	if s.pipeline == nil {
		return nil, errors.New("no detection pipeline configured")
	}
	return fn(s.pipeline)
}

// === Detection Handlers ===

type queryArgs struct {
	Path    string `json:"path"`
	Keyword string `json:"keyword"`
	Mode    string `json:"mode"`
}

func (a queryArgs) query() (pipeline.Query, error) {
	kind, err := detection.ParseKind(a.Mode)
	if err != nil {
		return pipeline.Query{}, err
	}
	return pipeline.Query{Keyword: a.Keyword, Kind: kind}, nil
}

func (s *Server) loadFrame(path string) (pipeline.Frame, error) {
	if path == "" {
		return pipeline.Frame{}, errors.New("path is required")
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return pipeline.Frame{}, err
	}
	return pipeline.NewFrame(img)
}

type findArgs struct {
	queryArgs
	Annotate string `json:"annotate"`
}

// FindResult is the find_in_image response.
type FindResult struct {
	Detections    []detection.Detection `json:"detections"`
	Count         int                   `json:"count"`
	Width         int                   `json:"width"`
	Height        int                   `json:"height"`
	AnnotatedPath string                `json:"annotated_path,omitempty"`
}

func (s *Server) handleFindInImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a findArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	q, err := a.query()
	if err != nil {
		return nil, err
	}
	frame, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	return s.requirePipeline(func(p *pipeline.Pipeline) (interface{}, error) {
		dets, err := p.SubmitStaticImage(ctx, frame, q)
		if err != nil {
			return nil, err
		}
		if dets == nil {
			dets = []detection.Detection{}
		}
		size := frame.Size()
		res := &FindResult{Detections: dets, Count: len(dets), Width: size.X, Height: size.Y}

		if a.Annotate != "" {
			if err := imaging.Save(imaging.Annotate(frame.Image, Annotations(dets), 0), a.Annotate); err != nil {
				return nil, err
			}
			res.AnnotatedPath = a.Annotate
		}
		return res, nil
	})
}

// Annotations converts detections for imaging.Annotate.
func Annotations(dets []detection.Detection) []imaging.Annotation {
	out := make([]imaging.Annotation, 0, len(dets))
	for _, d := range dets {
		out = append(out, imaging.Annotation{Label: d.Label, Box: d.Box, Confidence: d.Confidence})
	}
	return out
}

func (s *Server) handleStreamFrame(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	q, err := a.query()
	if err != nil {
		return nil, err
	}
	frame, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}
	return s.requirePipeline(func(p *pipeline.Pipeline) (interface{}, error) {
		res, err := p.SubmitStreamFrame(ctx, frame, q)
		if err != nil {
			return nil, err
		}
		if res.Detections == nil {
			res.Detections = []detection.Detection{}
		}
		return res, nil
	})
}

// === Stream Control Handlers ===

type setSuspendedArgs struct {
	Suspended bool   `json:"suspended"`
	Reason    string `json:"reason"`
}

func (s *Server) handleSetSuspended(args json.RawMessage) (interface{}, error) {
	var a setSuspendedArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.requirePipeline(func(p *pipeline.Pipeline) (interface{}, error) {
		switch strings.ToLower(a.Reason) {
		case "", "editing":
			p.SetSuspended(a.Suspended)
		case "zooming":
			p.SetZooming(a.Suspended)
		default:
			return nil, fmt.Errorf("unknown suspend reason %q", a.Reason)
		}
		return p.Stats().Pacer, nil
	})
}

func (s *Server) handleResetStream() (interface{}, error) {
	return s.requirePipeline(func(p *pipeline.Pipeline) (interface{}, error) {
		p.ResetStream()
		return map[string]interface{}{"generation": p.Stats().Generation}, nil
	})
}

// === Settings Handlers ===

func (s *Server) handleGetSettings() (interface{}, error) {
	if s.settings == nil {
		return nil, errors.New("no settings store configured")
	}
	return s.settings.Settings(), nil
}

func (s *Server) handleUpdateSettings(args json.RawMessage) (interface{}, error) {
	if s.settings == nil {
		return nil, errors.New("no settings store configured")
	}
	var patch config.SettingsPatch
	if err := json.Unmarshal(args, &patch); err != nil {
		return nil, err
	}
	updated, err := s.settings.Update(patch)
	if err != nil {
		return nil, err
	}
	s.log.Info().Interface("settings", updated).Msg("settings updated")
	return updated, nil
}

// === Inspection Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path, s.grid.MinDimension)
}

type cropTileArgs struct {
	Path  string  `json:"path"`
	Index int     `json:"index"`
	Grid  string  `json:"grid"`
	Scale float64 `json:"scale"`
}

// CropTileResult is the crop_tile response.
type CropTileResult struct {
	*imaging.CropResult
	Tile  geometry.Tile `json:"tile"`
	Tiles int           `json:"tiles"`
}

func (s *Server) handleCropTile(args json.RawMessage) (interface{}, error) {
	var a cropTileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var tiles []geometry.Tile
	switch strings.ToLower(a.Grid) {
	case "", "static":
		b := img.Bounds()
		tiles = roi.StaticGrid(b.Dx(), b.Dy(), s.grid)
	case "rotating":
		tiles = roi.RotatingTiles(roi.DefaultCornerFraction)
	default:
		return nil, fmt.Errorf("unknown grid %q", a.Grid)
	}
	if a.Index < 0 || a.Index >= len(tiles) {
		return nil, fmt.Errorf("tile index %d out of range [0,%d)", a.Index, len(tiles))
	}

	tile := tiles[a.Index]
	cropped, _, err := imaging.CropTile(img, tile)
	if err != nil {
		return nil, detection.NewEmptyRegionError(tile.Index)
	}
	enc, err := imaging.EncodePNG(imaging.Scale(cropped, a.Scale))
	if err != nil {
		return nil, err
	}
	return &CropTileResult{CropResult: enc, Tile: tile, Tiles: len(tiles)}, nil
}

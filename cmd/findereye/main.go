package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/httpapi"
	"github.com/wyyywsd/FinderEye/internal/imaging"
	"github.com/wyyywsd/FinderEye/internal/logging"
	"github.com/wyyywsd/FinderEye/internal/ocr"
	"github.com/wyyywsd/FinderEye/internal/onnxdet"
	"github.com/wyyywsd/FinderEye/internal/pipeline"
	"github.com/wyyywsd/FinderEye/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd := "mcp"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("findereye %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		usage(os.Stdout)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "findereye: %v\n", err)
		os.Exit(1)
	}
	// stdout carries MCP traffic, so logs always go to stderr
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component("main")
	log.Debug().Str("version", Version).Str("build_time", BuildTime).Str("commit", GitCommit).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	switch cmd {
	case "mcp":
		err = server.New(server.Options{Pipeline: app.pipeline, Settings: app.settings, Version: Version}).Run(ctx)
	case "serve":
		err = httpapi.New(app.pipeline, app.settings).ListenAndServe(ctx, cfg.HTTPAddr)
	case "detect":
		err = runDetect(ctx, app, os.Args[2:])
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Str("command", cmd).Msg("exited with error")
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "findereye - real-time object and text finder")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  findereye [mcp]                          Serve MCP over stdin/stdout")
	fmt.Fprintln(w, "  findereye serve                          Serve HTTP and websocket streams")
	fmt.Fprintln(w, "  findereye detect IMAGE -keyword K [-mode text] [-annotate out.png]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables (also read from .env):")
	fmt.Fprintln(w, "  FINDEREYE_MODEL_PATH          YOLOv8 ONNX model")
	fmt.Fprintln(w, "  FINDEREYE_ORT_LIBRARY_PATH    onnxruntime shared library")
	fmt.Fprintln(w, "  FINDEREYE_TESSDATA_PREFIX     Tesseract language data")
	fmt.Fprintln(w, "  FINDEREYE_HTTP_ADDR           Listen address for serve (default :8085)")
	fmt.Fprintln(w, "  FINDEREYE_LOG_LEVEL=debug     Enable debug logging")
}

// app holds the long-lived components shared by every command.
type app struct {
	settings *config.Store
	pipeline *pipeline.Pipeline
	objects  *onnxdet.Detector
}

func newApp(cfg *config.Config) (*app, error) {
	log := logging.Component("main")
	settings := config.NewStore(cfg.Defaults)
	opts := pipeline.OptionsFromConfig(cfg, settings)

	a := &app{settings: settings}
	if cfg.ModelPath == "" {
		log.Warn().Msg("FINDEREYE_MODEL_PATH not set; object detection disabled")
	} else if det, err := onnxdet.New(onnxdet.OptionsFromConfig(cfg)); err != nil {
		log.Warn().Err(err).Msg("object detector unavailable")
	} else {
		a.objects = det
		opts.Objects = det
	}

	if tess, err := ocr.New(ocr.OptionsFromConfig(cfg)); err != nil {
		log.Warn().Err(err).Msg("text detector unavailable")
	} else {
		info := tess.Info()
		log.Info().Str("version", info.Version).Strs("languages", info.Languages).Msg("text detector ready")
		opts.Text = tess
	}

	p, err := pipeline.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

func (a *app) Close() {
	if a.objects != nil {
		a.objects.Close()
	}
}

// runDetect runs one static query against an image file and prints the
// detections as text.
func runDetect(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	keyword := fs.String("keyword", "", "object label or text to find")
	mode := fs.String("mode", "object", "object or text")
	annotate := fs.String("annotate", "", "write an annotated copy of the image to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	// allow flags after the image path
	var paths []string
	for fs.NArg() > 0 {
		paths = append(paths, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return err
		}
	}
	if len(paths) != 1 {
		return errors.New("detect needs exactly one image path")
	}

	kind, err := detection.ParseKind(*mode)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(paths[0])
	if err != nil {
		return err
	}
	frame, err := pipeline.FrameFromEncoded(data, imaging.OrientationUnspecified)
	if err != nil {
		return err
	}

	dets, err := a.pipeline.SubmitStaticImage(ctx, frame, pipeline.Query{Keyword: *keyword, Kind: kind})
	if err != nil {
		return err
	}
	for _, d := range dets {
		fmt.Printf("%-16s %.2f  x=%.3f y=%.3f w=%.3f h=%.3f\n", d.Label, d.Confidence, d.Box.X, d.Box.Y, d.Box.W, d.Box.H)
	}
	if len(dets) == 0 {
		fmt.Println("no matches")
	}

	if *annotate != "" {
		out := imaging.Annotate(frame.Image, server.Annotations(dets), 0)
		if err := imaging.Save(out, *annotate); err != nil {
			return err
		}
	}
	return nil
}

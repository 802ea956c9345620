// Package server exposes the size search over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"sizefit/internal/codec"
	"sizefit/internal/processor"
	"sizefit/internal/search"
	"sizefit/internal/transform"
	"sizefit/pkg/imgutil"
)

const maxUploadBytes = 64 << 20

// Response headers describing the fitted image.
const (
	HeaderAchieved  = "X-Sizefit-Achieved"
	HeaderTarget    = "X-Sizefit-Target"
	HeaderWithin    = "X-Sizefit-Within-Tolerance"
	HeaderParams    = "X-Sizefit-Params"
	HeaderAdvisory  = "X-Sizefit-Advisory"
	HeaderEvaluated = "X-Sizefit-Evaluations"
)

type Config struct {
	Codec     codec.Options
	Resampler transform.Resampler
	Logger    *log.Logger
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

type Server struct {
	app    *fiber.App
	engine search.Engine
	codec  codec.Options
	log    *log.Logger
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			BodyLimit:             maxUploadBytes,
			DisableStartupMessage: true,
		}),
		engine: search.Engine{Resampler: cfg.Resampler, Logger: cfg.Logger},
		codec:  cfg.Codec,
		log:    cfg.Logger,
	}

	if cfg.AccessLog {
		s.app.Use(logger.New())
	}
	s.app.Use(cors.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Post("/fit", s.handleFit)
	s.app.Post("/inspect", s.handleInspect)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.Info("server starting", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleFit(c *fiber.Ctx) error {
	data, kind, err := readUpload(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	targetKB, err := queryInt(c, "target_kb")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid target_kb"})
	}
	quality, err := queryInt(c, "quality")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid quality"})
	}
	strategy, err := search.ParseStrategy(c.Query("strategy"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cd, err := codec.ForKind(kind, s.codec)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	src, err := processor.DecodeImage(bytes.NewReader(data), kind)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := s.engine.Run(src, search.TargetSpec{
		TargetBytes: int64(targetKB) * 1024,
		Codec:       cd,
		Strategy:    strategy,
		BaseQuality: quality,
	})
	if err != nil {
		s.log.Warn("fit failed", "err", err)
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	var out bytes.Buffer
	if err := res.Encode(&out); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	params, err := json.Marshal(res.Best.Params)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType(kind))
	c.Set(HeaderAchieved, strconv.FormatInt(res.Achieved, 10))
	c.Set(HeaderTarget, strconv.FormatInt(res.Target, 10))
	c.Set(HeaderWithin, strconv.FormatBool(res.WithinTolerance))
	c.Set(HeaderEvaluated, strconv.Itoa(res.Evaluations()))
	c.Set(HeaderParams, string(params))
	if advisory := res.Advisory(); advisory != "" {
		c.Set(HeaderAdvisory, advisory)
	}
	return c.Status(fiber.StatusOK).Send(out.Bytes())
}

func (s *Server) handleInspect(c *fiber.Ctx) error {
	data, kind, err := readUpload(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if !kind.Encodable() {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported format " + kind.String()})
	}
	img, err := processor.DecodeImage(bytes.NewReader(data), kind)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	b := img.Bounds()
	return c.JSON(fiber.Map{
		"format":     kind.String(),
		"bytes":      len(data),
		"size":       processor.FormatSize(int64(len(data))),
		"width":      b.Dx(),
		"height":     b.Dy(),
		"color_mode": string(transform.ModeOf(img)),
	})
}

func readUpload(c *fiber.Ctx) ([]byte, imgutil.Kind, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, imgutil.KindUnknown, errors.New("image form file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, imgutil.KindUnknown, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, imgutil.KindUnknown, err
	}
	kind, err := imgutil.SniffReader(bytes.NewReader(data))
	if err != nil {
		return nil, imgutil.KindUnknown, err
	}
	return data, kind, nil
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidTarget):
		return fiber.StatusBadRequest
	case errors.Is(err, search.ErrUnsupportedCombination):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, search.ErrNoCandidateFound):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func contentType(kind imgutil.Kind) string {
	switch kind {
	case imgutil.KindJPEG:
		return "image/jpeg"
	case imgutil.KindPNG:
		return "image/png"
	default:
		return fiber.MIMEOctetStream
	}
}

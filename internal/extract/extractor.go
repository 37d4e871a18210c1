// Package extract converts uploaded files into per-page plain text. PDF pages
// keep their native text layer when it carries enough content; thin pages are
// treated as scans, rasterized, and sent through OCR. Images go straight to
// OCR after a fixed upscale. One bad page never aborts the document.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	_ "image/jpeg"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// OCRClient recognizes text in raster image bytes. May be nil when OCR is not
// configured; extraction then degrades to empty text for scanned pages.
type OCRClient interface {
	ImageText(ctx context.Context, img []byte) (string, error)
}

type Options struct {
	// MinPageText is the rune count below which a PDF page's native text
	// layer is considered a scan artifact and the page is OCRed instead.
	MinPageText int
	// RasterDPI is the pdftoppm render resolution for scanned PDF pages.
	RasterDPI int
	// ImageUpscale is the linear scale factor applied to uploaded images
	// before OCR.
	ImageUpscale float64
	// PdftoppmPath overrides the pdftoppm binary location.
	PdftoppmPath string
}

type Extractor struct {
	ocr  OCRClient
	log  *zap.Logger
	opts Options
}

func New(ocr OCRClient, log *zap.Logger, opts Options) *Extractor {
	if opts.MinPageText <= 0 {
		opts.MinPageText = 32
	}
	if opts.RasterDPI <= 0 {
		opts.RasterDPI = 200
	}
	if opts.ImageUpscale <= 1 {
		opts.ImageUpscale = 2
	}
	if opts.PdftoppmPath == "" {
		opts.PdftoppmPath = "pdftoppm"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{ocr: ocr, log: log, opts: opts}
}

// ExtractPages converts raw file bytes into normalized per-page text.
// fileType is the declared type: pdf, png, jpg or jpeg.
func (e *Extractor) ExtractPages(ctx context.Context, data []byte, fileType string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case "pdf":
		return e.extractPDF(ctx, data)
	case "png", "jpg", "jpeg":
		return e.extractImage(ctx, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		pages = append(pages, e.extractPDFPage(ctx, reader, data, i))
	}
	return pages, nil
}

// extractPDFPage never fails; a page whose text layer and OCR both come up
// short yields an empty string.
func (e *Extractor) extractPDFPage(ctx context.Context, reader *pdf.Reader, data []byte, pageNum int) string {
	text := e.nativePageText(reader, pageNum)
	if len([]rune(text)) >= e.opts.MinPageText {
		return text
	}

	// Thin text layer: treat as a scanned page and OCR the raster instead.
	if e.ocr == nil {
		return text
	}
	raster, err := rasterizePDFPage(ctx, e.opts.PdftoppmPath, data, pageNum, e.opts.RasterDPI)
	if err != nil {
		e.log.Warn("rasterize pdf page failed", zap.Int("page", pageNum), zap.Error(err))
		return text
	}
	recognized, err := e.ocr.ImageText(ctx, raster)
	if err != nil {
		e.log.Warn("ocr pdf page failed", zap.Int("page", pageNum), zap.Error(err))
		return text
	}
	if ocrText := NormalizePageText(recognized); ocrText != "" {
		return ocrText
	}
	return text
}

func (e *Extractor) nativePageText(reader *pdf.Reader, pageNum int) string {
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	raw, err := page.GetPlainText(nil)
	if err != nil {
		e.log.Warn("pdf text layer failed", zap.Int("page", pageNum), zap.Error(err))
		return ""
	}
	return NormalizePageText(raw)
}

// extractImage treats the whole image as a single page.
func (e *Extractor) extractImage(ctx context.Context, data []byte) ([]string, error) {
	if e.ocr == nil {
		return []string{""}, nil
	}
	upscaled, err := upscaleImage(data, e.opts.ImageUpscale)
	if err != nil {
		e.log.Warn("upscale image failed, using original", zap.Error(err))
		upscaled = data
	}
	recognized, err := e.ocr.ImageText(ctx, upscaled)
	if err != nil {
		e.log.Warn("ocr image failed", zap.Error(err))
		return []string{""}, nil
	}
	return []string{NormalizePageText(recognized)}, nil
}

// upscaleImage decodes, scales by factor with CatmullRom, and re-encodes as
// PNG. Small scans OCR markedly better after a modest upscale.
func upscaleImage(data []byte, factor float64) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("degenerate image bounds %v", bounds)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

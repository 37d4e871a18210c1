package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// rasterizePDFPage renders a single PDF page to PNG bytes via pdftoppm.
func rasterizePDFPage(ctx context.Context, pdftoppmPath string, data []byte, pageNum, dpi int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "lexibot_raster_*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{
		"-r", strconv.Itoa(dpi),
		"-png",
		"-f", strconv.Itoa(pageNum),
		"-l", strconv.Itoa(pageNum),
		pdfPath, prefix,
	}
	cmd := exec.CommandContext(ctx, pdftoppmPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w; out=%s", err, string(out))
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("no raster produced by pdftoppm; out=%s", string(out))
	}
	sort.Strings(matches)

	img, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}
	return img, nil
}

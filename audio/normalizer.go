package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/skillsenselab/dialtone/errors"
	"github.com/skillsenselab/dialtone/process"
)

// Convert transcodes the file at path into the canonical format, writing the
// result next to the source as "converted_<stem>.wav". The converted file is
// left in place on success; the caller owns its lifecycle.
func (c *Converter) Convert(ctx context.Context, path string) (string, error) {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(dir, "converted_"+stem+"."+TargetFormat)

	res, err := c.runner.Run(ctx, process.Command{
		Binary: c.ffmpeg,
		Args: []string{
			"-y",
			"-i", path,
			"-acodec", "pcm_s16le",
			"-ac", strconv.Itoa(TargetChannels),
			"-ar", strconv.Itoa(TargetSampleRate),
			"-f", TargetFormat,
			outPath,
		},
	})
	if err != nil {
		c.log.Error("audio conversion failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return "", apperrors.ConversionError("ffmpeg_failed", err)
	}
	if res.ExitCode != 0 {
		c.log.Error("audio conversion failed", map[string]interface{}{
			"path":      path,
			"exit_code": res.ExitCode,
			"stderr":    tail(res.Stderr, 512),
		})
		return "", apperrors.ConversionError("ffmpeg_failed",
			fmt.Errorf("ffmpeg exited %d: %s", res.ExitCode, tail(res.Stderr, 512)))
	}
	if _, err := os.Stat(outPath); err != nil {
		// ffmpeg reported success but produced nothing; surface this as a
		// distinct failure so operators can tell it apart from tool errors.
		c.log.Error("converted file missing after successful conversion", map[string]interface{}{
			"path":   path,
			"output": outPath,
		})
		return "", apperrors.ConversionError("output_missing", err)
	}

	c.log.Debug("audio converted", map[string]interface{}{
		"path":   path,
		"output": outPath,
	})
	return outPath, nil
}

// tail returns at most n trailing bytes of b as a trimmed string. ffmpeg's
// useful diagnostics are at the end of stderr.
func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/sync/semaphore"
)

// Rasterizer converts SVG markup into PNG bytes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Rasterize must honor cancellation while waiting for a slot.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg []byte) ([]byte, error)
}

// ExecRasterizer delegates rasterization to an external image-processing
// engine via a subprocess, bounding how many run at once. The conversion is
// long-running and CPU-bound; the semaphore keeps it from starving request
// handling.
type ExecRasterizer struct {
	command string
	args    []string
	sem     *semaphore.Weighted
}

// NewExecRasterizer creates a rasterizer around the given command. An empty
// command defaults to ImageMagick; maxConcurrent <= 0 defaults to 2.
func NewExecRasterizer(command string, maxConcurrent int64) *ExecRasterizer {
	if command == "" {
		command = "magick"
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &ExecRasterizer{
		command: command,
		args:    []string{"-background", "none", "svg:-", "png:-"},
		sem:     semaphore.NewWeighted(maxConcurrent),
	}
}

// Rasterize feeds the SVG to the engine on stdin and returns its PNG stdout.
func (r *ExecRasterizer) Rasterize(ctx context.Context, svg []byte) ([]byte, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("render: rasterize: %w", err)
	}
	defer r.sem.Release(1)

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Stdin = bytes.NewReader(svg)
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("render: %s: %w: %s", r.command, err, stderr.String())
	}
	return out.Bytes(), nil
}

var _ Rasterizer = (*ExecRasterizer)(nil)

// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package imaging decodes just enough of an image to read its pixel
// dimensions, the input the placeholder-artwork heuristic in
// internal/detector needs. No third-party image library in the reference
// corpus does this more cheaply than image.DecodeConfig, which reads only
// the header rather than the full raster.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Decode reads data's image header and returns its pixel dimensions. It
// satisfies detector.Dimensions.
func Decode(_ context.Context, data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("imaging: decode header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

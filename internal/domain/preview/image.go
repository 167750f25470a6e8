package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	// decoders registered for image.Decode
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/matiasleandrokruk/parley/internal/domain/conversation"
)

const (
	jpegMediaType = "image/jpeg"
	jpegQuality   = 75
)

func (a *Adapter) previewImage(att Attachment) (conversation.ContentBlock, error) {
	raw, err := a.Decode(att)
	if err != nil {
		return conversation.ContentBlock{}, err
	}
	// Decoders allocate the full frame from the header, so the declared
	// size is checked before any pixel data is read.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return conversation.ContentBlock{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(a.cfg.MaxPixels) {
		return conversation.ContentBlock{}, fmt.Errorf("%w: %dx%d (max %d pixels)", ErrImageTooLarge, cfg.Width, cfg.Height, a.cfg.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return conversation.ContentBlock{}, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(src), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return conversation.ContentBlock{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return conversation.ImageBlock(jpegMediaType, base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// flatten drops the alpha channel so every source lands as opaque RGB.
func flatten(src image.Image) image.Image {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Over)
	return dst
}

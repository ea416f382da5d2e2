package report

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"

	_ "image/gif"
	_ "image/jpeg"
)

// Signature cells get a thumbnail of roughly these pixel dimensions.
const (
	signatureMaxWidth  = 100
	signatureMaxHeight = 40
)

// decodeSignatureImage turns a "data:image/..;base64,..." value into a PNG
// thumbnail sized for a signature cell. Undecodable data is an error the
// renderer logs and skips; it is never fatal to the workbook.
func decodeSignatureImage(dataURI string) ([]byte, error) {
	_, payload, ok := strings.Cut(dataURI, ",")
	if !ok {
		return nil, errors.New("signature is not a data URI")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("decode signature base64: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		decoded, webpErr := webp.Decode(bytes.NewReader(raw))
		if webpErr != nil {
			return nil, fmt.Errorf("decode signature image: %w", err)
		}
		img = decoded
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, errors.New("signature image has no pixels")
	}

	scale := 1.0
	if s := float64(signatureMaxWidth) / float64(width); s < scale {
		scale = s
	}
	if s := float64(signatureMaxHeight) / float64(height); s < scale {
		scale = s
	}

	dstW := int(float64(width)*scale + 0.5)
	dstH := int(float64(height)*scale + 0.5)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode signature thumbnail: %w", err)
	}
	return out.Bytes(), nil
}

package attendance

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	DefaultForeground = color.RGBA{R: 0x1e, G: 0x40, B: 0xaf, A: 0xff} // #1e40af
	DefaultBackground = color.White

	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// WidthError is returned by RenderPNG when the image cannot fit every module.
type WidthError struct {
	Width int
	Min   int // one pixel per module, quiet zone included
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("width %d too small, need at least %d", e.Width, e.Min)
}

// ImageOptions controls RenderPNG. A zero Width, color or Level takes its default value.
// Margin has no such fallback: start from DefaultImageOptions to get the default quiet zone.
type ImageOptions struct {
	Width      int // pixels, the image is Width x Width
	Margin     int // quiet zone, in modules
	Foreground color.Color
	Background color.Color
	Level      RecoveryLevel
}

// RecoveryLevel is the QR error correction level: "L", "M", "Q" or "H".
type RecoveryLevel string

func (l RecoveryLevel) qrLevel() (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(string(l)) {
	case "L":
		return qrcode.Low, nil
	case "", "M":
		return qrcode.Medium, nil
	case "Q":
		return qrcode.High, nil
	case "H":
		return qrcode.Highest, nil
	}
	return 0, errors.Errorf("unknown recovery level %q", string(l))
}

func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Width:      300,
		Margin:     2,
		Foreground: DefaultForeground,
		Background: DefaultBackground,
		Level:      "M",
	}
}

func (o ImageOptions) withDefaults() ImageOptions {
	def := DefaultImageOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Margin < 0 {
		o.Margin = 0
	}
	if o.Foreground == nil {
		o.Foreground = def.Foreground
	}
	if o.Background == nil {
		o.Background = def.Background
	}
	if o.Level == "" {
		o.Level = def.Level
	}
	return o
}

// RenderPNG draws payload as a QR code PNG.
func RenderPNG(payload string, opts ImageOptions) ([]byte, error) {
	opts = opts.withDefaults()

	level, err := opts.Level.qrLevel()
	if err != nil {
		return nil, err
	}
	qr, err := qrcode.New(payload, level)
	if err != nil {
		return nil, errors.Wrap(err, "encoding qr code")
	}
	qr.DisableBorder = true
	bitmap := qr.Bitmap()

	modules := len(bitmap) + 2*opts.Margin
	if opts.Width < modules {
		return nil, &WidthError{Width: opts.Width, Min: modules}
	}

	img := image.NewPaletted(
		image.Rect(0, 0, opts.Width, opts.Width),
		color.Palette{opts.Background, opts.Foreground},
	)
	for y := 0; y < opts.Width; y++ {
		my := y*modules/opts.Width - opts.Margin
		for x := 0; x < opts.Width; x++ {
			mx := x*modules/opts.Width - opts.Margin
			if my >= 0 && my < len(bitmap) && mx >= 0 && mx < len(bitmap) && bitmap[my][mx] {
				img.SetColorIndex(x, y, 1)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encoding png")
	}
	return buf.Bytes(), nil
}

// ImageFilename returns the download name of a lecture QR code.
func ImageFilename(subject, className string) string {
	clean := func(s string) string {
		return strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	}
	return "attendance-" + clean(subject) + "-" + clean(className) + ".png"
}

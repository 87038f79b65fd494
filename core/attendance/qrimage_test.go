package attendance

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPNG(t *testing.T) {
	issued, err := NewCodec("s3cr3t").Encode(testDescriptor())
	require.NoError(t, err)

	withOpts := func(modify func(o *ImageOptions)) ImageOptions {
		o := DefaultImageOptions()
		modify(&o)
		return o
	}

	tests := []struct {
		name       string
		opts       ImageOptions
		wantWidth  int
		wantMargin bool
		wantErr    bool
	}{
		{name: "defaults", opts: DefaultImageOptions(), wantWidth: 300, wantMargin: true},
		{name: "zero options", opts: ImageOptions{}, wantWidth: 300},
		{name: "custom width", opts: withOpts(func(o *ImageOptions) { o.Width = 512 }), wantWidth: 512, wantMargin: true},
		{name: "odd width", opts: withOpts(func(o *ImageOptions) { o.Width = 401 }), wantWidth: 401, wantMargin: true},
		{name: "large margin", opts: withOpts(func(o *ImageOptions) { o.Margin = 10 }), wantWidth: 300, wantMargin: true},
		{name: "no margin", opts: withOpts(func(o *ImageOptions) { o.Margin = 0 }), wantWidth: 300},
		{name: "high recovery", opts: withOpts(func(o *ImageOptions) { o.Level = "H" }), wantWidth: 300, wantMargin: true},
		{name: "unknown recovery", opts: withOpts(func(o *ImageOptions) { o.Level = "Z" }), wantErr: true},
		{name: "too small", opts: withOpts(func(o *ImageOptions) { o.Width = 20 }), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := RenderPNG(issued.Payload, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, img.Bounds().Dx())
			assert.Equal(t, tt.wantWidth, img.Bounds().Dy())

			// the top left corner is either quiet zone or the finder pattern
			bg := rgba(DefaultBackground)
			fg := rgba(DefaultForeground)
			if tt.wantMargin {
				assert.Equal(t, bg, rgba(img.At(0, 0)))
			} else {
				assert.Equal(t, fg, rgba(img.At(0, 0)))
			}
			assert.True(t, hasColor(img, fg))
		})
	}
}

func TestRenderPNG_widthTooSmall(t *testing.T) {
	issued, err := NewCodec("s3cr3t").Encode(testDescriptor())
	require.NoError(t, err)

	opts := DefaultImageOptions()
	opts.Width = 64
	opts.Margin = 16
	_, err = RenderPNG(issued.Payload, opts)
	require.Error(t, err)

	var widthErr *WidthError
	require.True(t, errors.As(err, &widthErr))
	assert.Equal(t, 64, widthErr.Width)
	assert.Greater(t, widthErr.Min, 64)

	// the reported minimum renders
	opts.Width = widthErr.Min
	_, err = RenderPNG(issued.Payload, opts)
	assert.NoError(t, err)
}

func rgba(c interface{ RGBA() (r, g, b, a uint32) }) [4]uint32 {
	r, g, b, a := c.RGBA()
	return [4]uint32{r, g, b, a}
}

func hasColor(img image.Image, want [4]uint32) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgba(img.At(x, y)) == want {
				return true
			}
		}
	}
	return false
}

func TestImageFilename(t *testing.T) {
	assert.Equal(t, "attendance-Mathematics-CS-A.png", ImageFilename("Mathematics", "CS-A"))
	name := ImageFilename(" Data / Structures ", "B:2")
	assert.Equal(t, "attendance-Data_Structures-B_2.png", name)
	assert.False(t, strings.ContainsAny(name, "/: "))
}

package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSize(t *testing.T) {
	data := pngBytes(t, 30, 20)
	w, h, err := Size(data)
	if err != nil {
		t.Fatal(err)
	}
	if w != 30 || h != 20 {
		t.Errorf("size = %dx%d", w, h)
	}
	if _, _, err := Size([]byte("garbage")); err == nil {
		t.Error("expected error on garbage")
	}
}

func TestToJPEG(t *testing.T) {
	out, err := ToJPEG(pngBytes(t, 10, 10), 80)
	if err != nil {
		t.Fatal(err)
	}
	img, format, err := Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q", format)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 10 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestFitDown(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	small := FitDown(img, 400, 400)
	if small != img {
		t.Error("image inside the box should be returned unchanged")
	}
	scaled := FitDown(img, 100, 100)
	if scaled.Bounds().Dx() != 100 || scaled.Bounds().Dy() != 50 {
		t.Errorf("scaled bounds = %v", scaled.Bounds())
	}
}

func TestRasterizeSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><rect x="10" y="10" width="80" height="80" fill="#336699"/></svg>`)
	img, err := RasterizeSVG(svg, 200, 300)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 300 {
		t.Errorf("bounds = %v", img.Bounds())
	}
	corner := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
	if corner.R != 255 || corner.G != 255 || corner.B != 255 {
		t.Errorf("background not white: %v", corner)
	}
}

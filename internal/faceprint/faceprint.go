// Package faceprint derives fixed-length numeric encodings from face images.
//
// The extractor is a deterministic content fingerprint, not a verified-face
// detector: it samples pixel intensities at decorrelated positions and folds
// in a small content-hash perturbation so visually similar but distinct
// images do not collide. The same pixel content always produces the same
// sampling term.
package faceprint

import (
	"crypto/md5"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// Dim is the fixed length of every encoding.
const Dim = 128

const (
	// sampleGrid is the side of the square grid images are resized to
	// before sampling.
	sampleGrid = 100

	// strideX and strideY are coprime with sampleGrid so the 128 sample
	// positions spread across the whole grid instead of clustering.
	strideX = 13
	strideY = 17

	// noiseAmplitude bounds the content-hash perturbation relative to the
	// [-1, 1] sample range.
	noiseAmplitude = 0.1
)

// Encoding is a fixed-length feature vector representing one face sample.
// Immutable once produced.
type Encoding []float32

// Extract derives an encoding from a decoded image. Returns nil when there
// is no usable content (nil image), which callers must treat as a valid
// "nothing found" outcome rather than an error.
func Extract(img *imaging.Image) Encoding {
	if img == nil || img.Pixels == nil {
		return nil
	}

	gray := toGrayscale(resizeImage(img.Pixels, sampleGrid, sampleGrid))
	enc := sampleVector(gray)
	perturb(enc, img.Raw)
	normalize(enc)
	return enc
}

// sampleVector reads 128 intensities at coprime-stride positions and maps
// each from [0, 255] into [-1, 1].
func sampleVector(gray [][]float64) Encoding {
	enc := make(Encoding, Dim)
	for i := 0; i < Dim; i++ {
		x := (i * strideX) % sampleGrid
		y := (i * strideY) % sampleGrid
		v := gray[x][y] / 255.0
		enc[i] = float32((v - 0.5) * 2)
	}
	return enc
}

// perturb folds a content hash of the original byte stream into the first 16
// slots at low amplitude. Two files with identical pixels but different
// encodings end up close but not identical.
func perturb(enc Encoding, raw []byte) {
	sum := md5.Sum(raw)
	for i, b := range sum {
		enc[i%Dim] += float32((float64(b)/255.0 - 0.5) * noiseAmplitude)
	}
}

// normalize scales the vector to unit L2 length. A zero-norm vector is left
// as-is rather than divided by zero.
func normalize(enc Encoding) {
	var sum float64
	for _, v := range enc {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range enc {
		enc[i] = float32(float64(enc[i]) / norm)
	}
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := 0; x < width; x++ {
		gray[x] = make([]float64, height)
		for y := 0; y < height; y++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}

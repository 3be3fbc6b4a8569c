package match

import (
	"math"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/faceprint"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// Decision is the outcome of one recognition attempt. The best distance and
// confidence are reported even when the match is rejected, for
// observability. The final business accept decision (confidence threshold,
// duplicate rules) belongs to the caller.
type Decision struct {
	UserID     string
	Matched    bool
	Confidence float64
	Distance   float64
}

// Engine orchestrates decode → extract → index search → threshold.
type Engine struct {
	index *Index
	log   *zap.Logger
}

// NewEngine creates a recognition engine over the given index.
func NewEngine(index *Index, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{index: index, log: logger}
}

// Index returns the engine's match index.
func (e *Engine) Index() *Index {
	return e.index
}

// Recognize runs one recognition attempt over raw image bytes. Decode and
// extract failures resolve to a no-match decision, never an error: the
// calling surface must always be able to answer "not recognized".
func (e *Engine) Recognize(raw []byte, tolerance float64) Decision {
	img, err := imaging.Decode(raw)
	if err != nil {
		e.log.Debug("recognition decode failed", zap.Error(err))
		return noMatch()
	}
	return e.recognizeImage(img, tolerance)
}

// RecognizeString is Recognize for base64 or data-URL input.
func (e *Engine) RecognizeString(data string, tolerance float64) Decision {
	img, err := imaging.DecodeString(data)
	if err != nil {
		e.log.Debug("recognition decode failed", zap.Error(err))
		return noMatch()
	}
	return e.recognizeImage(img, tolerance)
}

func (e *Engine) recognizeImage(img *imaging.Image, tolerance float64) Decision {
	enc := faceprint.Extract(img)
	if enc == nil {
		return noMatch()
	}
	return e.RecognizeEncoding(enc, tolerance)
}

// RecognizeEncoding matches an already-extracted encoding against the index.
func (e *Engine) RecognizeEncoding(enc faceprint.Encoding, tolerance float64) Decision {
	userID, distance, ok := e.index.Search(enc)
	if !ok {
		return noMatch()
	}

	// Confidence is the ratio scheme: distance at the tolerance boundary
	// scores zero, a perfect match scores one.
	confidence := 0.0
	if tolerance > 0 {
		confidence = math.Max(0, 1-distance/tolerance)
	}

	if distance > tolerance {
		e.log.Debug("best match outside tolerance",
			zap.String("user_id", userID),
			zap.Float64("distance", distance),
			zap.Float64("tolerance", tolerance))
		return Decision{Confidence: confidence, Distance: distance}
	}

	e.log.Debug("face matched",
		zap.String("user_id", userID),
		zap.Float64("distance", distance),
		zap.Float64("confidence", confidence))
	return Decision{
		UserID:     userID,
		Matched:    true,
		Confidence: confidence,
		Distance:   distance,
	}
}

func noMatch() Decision {
	return Decision{Distance: math.Inf(1)}
}

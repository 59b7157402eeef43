package inference

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"sync"
	"time"

	"github.com/khaledhikmat/snap-go/model"
	"gocv.io/x/gocv"
)

const (
	labelFont      = gocv.FontHersheySimplex
	labelFontScale = 0.4
	labelThickness = 1
)

var (
	labelBackground = color.RGBA{75, 75, 75, 0}
	labelForeground = color.RGBA{255, 255, 255, 0}

	rndMu sync.Mutex
	rnd   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// markRegions draws a box and a confidence label per region on a clone of
// frame. The source Mat is left untouched.
func markRegions(frame gocv.Mat, regions []model.DetectedRegion) gocv.Mat {
	marked := frame.Clone()
	for _, region := range regions {
		gocv.Rectangle(&marked, region.Rect, highlighterColor(), 1)

		text := fmt.Sprintf("Confidence: %.2f", region.Confidence)
		size := gocv.GetTextSize(text, labelFont, labelFontScale, labelThickness)
		origin := image.Pt(region.Rect.Min.X, region.Rect.Min.Y-10)

		// Text background for legibility
		gocv.Rectangle(&marked, image.Rect(origin.X, origin.Y-size.Y, origin.X+size.X, origin.Y+labelThickness*2), labelBackground, -1)
		gocv.PutText(&marked, text, origin, labelFont, labelFontScale, labelForeground, labelThickness)
	}
	return marked
}

// highlighterColor picks a bright marker-like color: one high channel, one
// mid-high, one low, in random order.
func highlighterColor() color.RGBA {
	rndMu.Lock()
	defer rndMu.Unlock()

	channels := []uint8{
		uint8(200 + rnd.Intn(56)),
		uint8(150 + rnd.Intn(106)),
		uint8(rnd.Intn(100)),
	}
	rnd.Shuffle(len(channels), func(i, j int) {
		channels[i], channels[j] = channels[j], channels[i]
	})
	return color.RGBA{channels[0], channels[1], channels[2], 0}
}

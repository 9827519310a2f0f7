package processor

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-targetlink/pkg/blobs"
	"github.com/teslashibe/go-targetlink/pkg/dispatch"
)

// Overlay colors.
var (
	colorPart     = color.RGBA{200, 20, 200, 0}
	colorRejected = color.RGBA{255, 10, 0, 0}
	colorCentroid = color.RGBA{0, 190, 255, 0}
	colorTarget   = color.RGBA{10, 255, 10, 0}
)

// render draws the display image for mode and encodes it as JPEG.
func (p *Processor) render(img, mask gocv.Mat, mode dispatch.Mode, ex blobs.Extraction) ([]byte, error) {
	vis := gocv.NewMat()
	defer vis.Close()

	switch mode {
	case dispatch.ModeThresholded:
		gocv.CvtColor(mask, &vis, gocv.ColorGrayToBGR)
		drawParts(&vis, ex)
		drawTargets(&vis, ex.Targets)
	case dispatch.ModeTargets, dispatch.ModeTargetsPlus:
		img.CopyTo(&vis)
		drawTargets(&vis, ex.Targets)
		if mode == dispatch.ModeTargetsPlus {
			drawParts(&vis, ex)
		}
	default:
		img.CopyTo(&vis)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, vis, []int{gocv.IMWriteJpegQuality, p.cfg.JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("encode display: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func drawParts(vis *gocv.Mat, ex blobs.Extraction) {
	for _, part := range ex.Parts {
		gocv.Rectangle(vis, part.Box, colorPart, 1)
	}
	for _, r := range ex.Rejected {
		gocv.Rectangle(vis, r.Part.Box, colorRejected, 1)
	}
}

func drawTargets(vis *gocv.Mat, targets []blobs.Target) {
	for _, t := range targets {
		center := image.Pt(int(t.CentroidX), int(t.CentroidY))
		gocv.Circle(vis, center, 5, colorCentroid, 3)
		gocv.Rectangle(vis, t.Box, colorTarget, 2)
	}
}

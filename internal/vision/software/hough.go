package software

import (
	"image"
	"math"
	"sort"

	"framewatch/internal/vision"
)

const houghThetaSteps = 180

var houghCos, houghSin = houghTable()

func houghTable() (cos, sin [houghThetaSteps]float64) {
	for i := 0; i < houghThetaSteps; i++ {
		theta := float64(i) * math.Pi / houghThetaSteps
		cos[i], sin[i] = math.Cos(theta), math.Sin(theta)
	}
	return cos, sin
}

type houghPeak struct {
	rho, theta int
	votes      int
}

// houghLines accumulates (rho, theta) votes from pixels above level and
// returns the strongest lines clipped to the image bounds. rho resolution is
// one pixel and theta resolution one degree.
func houghLines(pix []byte, width, height int, level uint8, minVotes, maxLines int) []vision.Segment {
	if width <= 0 || height <= 0 || len(pix) < width*height {
		return nil
	}
	cos, sin := &houghCos, &houghSin
	maxRho := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	rhoSpan := 2*maxRho + 1
	acc := make([]int, rhoSpan*houghThetaSteps)

	for y := 0; y < height; y++ {
		row := pix[y*width : (y+1)*width]
		for x, v := range row {
			if v < level {
				continue
			}
			for t := 0; t < houghThetaSteps; t++ {
				rho := int(math.Round(float64(x)*cos[t]+float64(y)*sin[t])) + maxRho
				acc[rho*houghThetaSteps+t]++
			}
		}
	}

	var peaks []houghPeak
	for r := 0; r < rhoSpan; r++ {
		for t := 0; t < houghThetaSteps; t++ {
			votes := acc[r*houghThetaSteps+t]
			if votes < minVotes || !localMax(acc, rhoSpan, r, t, votes) {
				continue
			}
			peaks = append(peaks, houghPeak{rho: r - maxRho, theta: t, votes: votes})
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })
	if maxLines > 0 && len(peaks) > maxLines {
		peaks = peaks[:maxLines]
	}

	segments := make([]vision.Segment, 0, len(peaks))
	for _, p := range peaks {
		if seg, ok := clipLine(float64(p.rho), cos[p.theta], sin[p.theta], width, height); ok {
			segments = append(segments, seg)
		}
	}
	return segments
}

func localMax(acc []int, rhoSpan, r, t, votes int) bool {
	for dr := -1; dr <= 1; dr++ {
		for dt := -1; dt <= 1; dt++ {
			if dr == 0 && dt == 0 {
				continue
			}
			rr, tt := r+dr, t+dt
			if rr < 0 || rr >= rhoSpan || tt < 0 || tt >= houghThetaSteps {
				continue
			}
			other := acc[rr*houghThetaSteps+tt]
			if other > votes || (other == votes && (dr < 0 || (dr == 0 && dt < 0))) {
				return false
			}
		}
	}
	return true
}

// clipLine intersects x*cos + y*sin = rho with the image rectangle.
func clipLine(rho, c, s float64, width, height int) (vision.Segment, bool) {
	w, h := float64(width-1), float64(height-1)
	var pts []image.Point
	add := func(x, y float64) {
		if x < -0.5 || x > w+0.5 || y < -0.5 || y > h+0.5 {
			return
		}
		p := image.Pt(int(math.Round(x)), int(math.Round(y)))
		for _, q := range pts {
			if q == p {
				return
			}
		}
		pts = append(pts, p)
	}
	if math.Abs(s) > 1e-9 {
		add(0, rho/s)
		add(w, (rho-w*c)/s)
	}
	if math.Abs(c) > 1e-9 {
		add(rho/c, 0)
		add((rho-h*s)/c, h)
	}
	if len(pts) < 2 {
		return vision.Segment{}, false
	}
	return vision.Segment{A: pts[0], B: pts[1]}, true
}

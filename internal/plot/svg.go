package plot

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"
	"strings"
)

const (
	svgWidth  = 1000
	svgHeight = 700
	svgPad    = 60
)

type canvas struct {
	d Data
}

func (c canvas) px(x float64) float64 {
	return svgPad + (x-c.d.XMin)/(c.d.XMax-c.d.XMin)*(svgWidth-2*svgPad)
}

func (c canvas) py(y float64) float64 {
	return svgHeight - svgPad - (y-c.d.YMin)/(c.d.YMax-c.d.YMin)*(svgHeight-2*svgPad)
}

func WriteSVG(w io.Writer, d Data, title string) error {
	c := canvas{d: d}
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		svgWidth, svgHeight, svgWidth, svgHeight)
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="white"/>`+"\n")
	fmt.Fprintf(bw, `<text x="%d" y="30" font-family="sans-serif" font-size="18" font-weight="bold" text-anchor="middle">%s</text>`+"\n",
		svgWidth/2, html.EscapeString(title))

	// axes
	if d.YMin <= 0 && d.YMax >= 0 {
		fmt.Fprintf(bw, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="black" stroke-width="1.5"/>`+"\n",
			c.px(d.XMin), c.py(0), c.px(d.XMax), c.py(0))
	}
	if d.XMin <= 0 && d.XMax >= 0 {
		fmt.Fprintf(bw, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="black" stroke-width="1.5"/>`+"\n",
			c.px(0), c.py(d.YMin), c.px(0), c.py(d.YMax))
	}

	// curve, split where f is undefined
	var seg []string
	flush := func() {
		if len(seg) > 1 {
			fmt.Fprintf(bw, `<polyline fill="none" stroke="#1f77b4" stroke-width="2" points="%s"/>`+"\n", strings.Join(seg, " "))
		}
		seg = seg[:0]
	}
	for _, s := range d.Curve {
		if s.Y == nil {
			flush()
			continue
		}
		y := math.Max(d.YMin, math.Min(d.YMax, *s.Y))
		seg = append(seg, fmt.Sprintf("%.2f,%.2f", c.px(s.X), c.py(y)))
	}
	flush()

	// later brackets more opaque
	n := len(d.Brackets)
	for i, b := range d.Brackets {
		alpha := 0.4 + 0.6*float64(i)/math.Max(1, float64(n-1))
		for _, m := range []struct {
			x     float64
			color string
		}{{b.XL, "#3060c0"}, {b.XU, "#c03030"}} {
			fmt.Fprintf(bw, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-dasharray="6,4" stroke-width="1.5" stroke-opacity="%.2f"/>`+"\n",
				c.px(m.x), c.py(d.YMin), c.px(m.x), c.py(d.YMax), m.color, alpha)
		}
	}

	if d.YMin <= 0 && d.YMax >= 0 {
		for _, xr := range d.Estimates {
			fmt.Fprintf(bw, `<circle cx="%.2f" cy="%.2f" r="6" fill="green" stroke="black"/>`+"\n", c.px(xr), c.py(0))
		}
		if d.Root != nil {
			fmt.Fprintf(bw, `<polygon points="%s" fill="lime" stroke="black" stroke-width="1.5"/>`+"\n",
				star(c.px(*d.Root), c.py(0), 14, 6))
		}
	}

	fmt.Fprintf(bw, `<text x="%d" y="%d" font-family="sans-serif" font-size="12">x</text>`+"\n", svgWidth-svgPad/2, svgHeight-svgPad/2)
	fmt.Fprintf(bw, `<text x="%d" y="%d" font-family="sans-serif" font-size="12">f(x)</text>`+"\n", svgPad/4, svgPad/2)
	fmt.Fprintln(bw, `</svg>`)
	return bw.Flush()
}

func star(cx, cy, outer, inner float64) string {
	pts := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		pts = append(pts, fmt.Sprintf("%.2f,%.2f", cx+r*math.Cos(a), cy+r*math.Sin(a)))
	}
	return strings.Join(pts, " ")
}

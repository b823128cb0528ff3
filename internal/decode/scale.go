package decode

import "fmt"

// Scale is the denominator of a power-of-two decode scale: 1 is a full
// decode, 8 decodes at one eighth of the source size.
type Scale int

const (
	ScaleFull    Scale = 1
	ScaleHalf    Scale = 2
	ScaleQuarter Scale = 4
	ScaleEighth  Scale = 8
)

// coarsest first
var scales = []Scale{ScaleEighth, ScaleQuarter, ScaleHalf, ScaleFull}

func (s Scale) String() string {
	if s <= ScaleFull {
		return "1/1"
	}
	return fmt.Sprintf("1/%d", int(s))
}

// ScaledSize returns the dimensions a subsampled decode produces. Partial
// blocks round up, as libjpeg does.
func ScaledSize(w, h int, s Scale) (int, int) {
	if s <= ScaleFull {
		return w, h
	}
	d := int(s)
	return (w + d - 1) / d, (h + d - 1) / d
}

// FitBox returns the largest size with the aspect ratio of srcW x srcH that
// fits within boxW x boxH without upscaling. A non-positive box dimension
// leaves that axis unconstrained. The constrained axis rounds up.
func FitBox(srcW, srcH, boxW, boxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	if boxW <= 0 || boxW > srcW {
		boxW = srcW
	}
	if boxH <= 0 || boxH > srcH {
		boxH = srcH
	}
	// width-limited when srcW/srcH >= boxW/boxH
	if srcW*boxH >= srcH*boxW {
		return boxW, max(1, (srcH*boxW+srcW-1)/srcW)
	}
	return max(1, (srcW*boxH+srcH-1)/srcH), boxH
}

// SelectScale picks the coarsest scale whose decoded size still covers the
// source fitted into the target box on both axes.
func SelectScale(srcW, srcH, boxW, boxH int) Scale {
	needW, needH := FitBox(srcW, srcH, boxW, boxH)
	if needW == 0 {
		return ScaleFull
	}
	for _, s := range scales {
		w, h := ScaledSize(srcW, srcH, s)
		if w >= needW && h >= needH {
			return s
		}
	}
	return ScaleFull
}

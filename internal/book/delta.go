package book

// A Delta transforms one document value into the next. Deltas never write
// through to the value they receive.
type Delta func(Document) Document

func (d Document) clone() Document {
	frames := make([]Frame, len(d.Frames))
	copy(frames, d.Frames)
	d.Frames = frames
	return d
}

// WithFrame applies fn to the frame with id. The second result is false
// when no such frame exists, in which case doc is returned as is.
func WithFrame(doc Document, id string, fn func(Frame) Frame) (Document, bool) {
	for i, f := range doc.Frames {
		if f.ID != id {
			continue
		}
		next := doc.clone()
		next.Frames[i] = fn(f)
		return next, true
	}
	return doc, false
}

func frameDelta(id string, fn func(Frame) Frame) Delta {
	return func(doc Document) Document {
		next, _ := WithFrame(doc, id, fn)
		return next
	}
}

func MarkFrameInFlight(id string) Delta {
	return frameDelta(id, func(f Frame) Frame {
		f.Status = InFlight
		f.Image = nil
		f.Error = ""
		return f
	})
}

func SettleFrame(id string, img *Image) Delta {
	return frameDelta(id, func(f Frame) Frame {
		f.Status = Ready
		f.Image = img
		f.Error = ""
		return f
	})
}

func FailFrame(id, msg string) Delta {
	return frameDelta(id, func(f Frame) Frame {
		f.Status = Failed
		f.Image = nil
		f.Error = msg
		return f
	})
}

func MarkCoverInFlight(ratio AspectRatio) Delta {
	return func(doc Document) Document {
		next := doc.clone()
		next.Cover = Cover{Status: InFlight, AspectRatio: ratio}
		return next
	}
}

func SettleCover(img *Image) Delta {
	return func(doc Document) Document {
		next := doc.clone()
		next.Cover.Status = Ready
		next.Cover.Image = img
		next.Cover.Error = ""
		return next
	}
}

func FailCover(msg string) Delta {
	return func(doc Document) Document {
		next := doc.clone()
		next.Cover.Status = Failed
		next.Cover.Image = nil
		next.Cover.Error = msg
		return next
	}
}

package receipt

// paginator tracks the vertical cursor of the current page and starts a new
// page when a block does not fit above the bottom limit.
type paginator struct {
	y      float64
	top    float64
	bottom float64
	pages  int

	newPage func()
}

func newPaginator(top, bottom float64, newPage func()) *paginator {
	p := &paginator{top: top, bottom: bottom, newPage: newPage}
	p.breakPage()
	return p
}

func (p *paginator) breakPage() {
	p.newPage()
	p.pages++
	p.y = p.top
}

// reserve makes room for a block of height h. When the block does not fit
// a new page is started and header, if set, is drawn at its top. It reports
// whether a page break happened.
func (p *paginator) reserve(h float64, header func()) bool {
	if p.y+h <= p.bottom {
		return false
	}
	p.breakPage()
	if header != nil {
		header()
	}
	return true
}

// ensure starts a new page when less than room is left, without a header.
func (p *paginator) ensure(room float64) {
	if p.y > p.bottom-room {
		p.breakPage()
	}
}

func (p *paginator) advance(h float64) { p.y += h }

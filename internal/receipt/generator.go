package receipt

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/model"
)

// Receipt titles.
const (
	RegistrationTitle = "Registration Receipt"
	AssignmentTitle   = "Seat Assignment Receipt"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageTop       = 30.0
	contentBottom = 267.0 // page height minus footer area
	lineHeight    = 8.0
	sectionGap    = 15.0
	leftX         = 20.0
	valueX        = 80.0
)

type rgb struct{ r, g, b int }

var (
	primary  = rgb{213, 49, 55}
	darkGray = rgb{36, 36, 36}
	midGray  = rgb{100, 100, 100}
)

// Options tune a single render.
type Options struct {
	Title string
	// Notes is printed in its own section when set.
	Notes string
}

// Receipt is a rendered document.
type Receipt struct {
	PDF     []byte
	Pages   int
	Summary Summary
}

// Generator renders receipts. Output depends only on its inputs and Now.
type Generator struct {
	Brand   string
	Contact string
	Now     func() time.Time
}

// NewGenerator returns a generator with the conference branding.
func NewGenerator() *Generator {
	return &Generator{
		Brand:   "XVII ROBLESMUN",
		Contact: "mun@losroblesenlinea.com.ve",
		Now:     time.Now,
	}
}

// Render lays out the receipt of reg.
func (g *Generator) Render(reg model.Registration, table PriceTable, rate float64, opts Options) (Receipt, error) {
	if opts.Title == "" {
		opts.Title = RegistrationTitle
	}
	now := g.Now()
	sum := Quote(reg, table, rate)

	r := g.newRenderer(opts.Title, now)
	pdf := r.pdf

	r.header(opts.Title)
	r.pairs("User Information", [][2]string{
		{"Full name:", reg.FullName()},
		{"Email:", reg.UserEmail},
		{"Institution:", reg.UserInstitution},
		{"User type:", userType(reg)},
	})
	r.pairs("Registration Information", [][2]string{
		{"Registration date:", registrationDate(reg, now)},
		{"Transaction ID:", orDefault(reg.TransactionID, "Pending")},
		{"Payment method:", orDefault(reg.PaymentMethod, "-")},
		{"Payment status:", paymentStatus(reg)},
	})
	r.pairs("Registration Details", [][2]string{
		{"Seats requested:", strconv.Itoa(seatCount(reg))},
		{"Registration type:", DelegationLabel(reg)},
		{"Backup seats:", yesNo(reg.RequiresBackup)},
	})
	if len(reg.SeatsRequested) > 0 {
		r.list("Selected Main Seats", reg.SeatsRequested, rgb{248, 248, 248})
		r.page.advance(10)
	}
	if reg.RequiresBackup && len(reg.BackupSeatsRequested) > 0 {
		r.list("Selected Backup Seats", reg.BackupSeatsRequested, rgb{255, 248, 220})
		r.page.advance(sectionGap)
	}
	r.financial(sum)
	if opts.Notes != "" {
		r.paragraphs("Notes", []string{opts.Notes})
	}
	r.paragraphs("Important Information", []string{
		"- This receipt is valid only once the payment has been verified.",
		"- Main seats take priority over backup seats.",
		"- Final seat allocation depends on availability.",
		"- Keep this receipt for future reference.",
		"- For questions, contact: " + g.Contact,
	})

	if err := pdf.Error(); err != nil {
		return Receipt{}, errors.Wrap(err, "render receipt")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Receipt{}, errors.Wrap(err, "render receipt")
	}
	return Receipt{PDF: buf.Bytes(), Pages: r.page.pages, Summary: sum}, nil
}

// newRenderer opens an A4 document with the first page started.
func (g *Generator) newRenderer(title string, now time.Time) *renderer {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetTitle(title, true)
	pdf.SetAuthor(g.Brand, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")

	r := &renderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), brand: g.Brand}
	r.width, r.height = pdf.GetPageSize()
	pdf.SetFooterFunc(func() { r.footer(now) })
	r.page = newPaginator(pageTop, contentBottom, pdf.AddPage)
	return r
}

type renderer struct {
	pdf           *fpdf.Fpdf
	tr            func(string) string
	brand         string
	width, height float64
	page          *paginator
}

func (r *renderer) color(c rgb) { r.pdf.SetTextColor(c.r, c.g, c.b) }

func (r *renderer) text(x, y float64, s string) { r.pdf.Text(x, y, r.tr(s)) }

// split wraps s to width w in the current font. It works on the translated
// single-byte text, so accented characters keep their font widths.
func (r *renderer) split(s string, w float64) [][]byte {
	return r.pdf.SplitLines([]byte(r.tr(s)), w)
}

func (r *renderer) centered(y float64, s string) {
	r.pdf.SetXY(0, y-4)
	r.pdf.CellFormat(r.width, 6, r.tr(s), "", 0, "C", false, 0, "")
}

func (r *renderer) header(title string) {
	r.pdf.SetFillColor(primary.r, primary.g, primary.b)
	r.pdf.Rect(0, 0, r.width, 25, "F")
	r.color(rgb{255, 255, 255})
	r.pdf.SetFont("Helvetica", "B", 20)
	r.centered(16, r.brand)

	r.page.advance(sectionGap)
	r.color(darkGray)
	r.pdf.SetFont("Helvetica", "B", 16)
	r.centered(r.page.y, title)
	r.page.advance(sectionGap)

	r.pdf.SetDrawColor(primary.r, primary.g, primary.b)
	r.pdf.SetLineWidth(1)
	r.pdf.Line(leftX, r.page.y, r.width-leftX, r.page.y)
	r.page.advance(sectionGap)
}

func (r *renderer) sectionTitle(title string, size float64) {
	r.pdf.SetFont("Helvetica", "B", size)
	r.color(primary)
	r.text(leftX, r.page.y, title)
	r.page.advance(lineHeight + 2)
}

func (r *renderer) pairs(title string, rows [][2]string) {
	r.page.ensure(20 + lineHeight*float64(len(rows)))
	r.sectionTitle(title, 14)
	r.color(darkGray)
	for _, row := range rows {
		r.pdf.SetFont("Helvetica", "B", 10)
		r.text(leftX, r.page.y, row[0])
		r.pdf.SetFont("Helvetica", "", 10)
		r.text(valueX, r.page.y, row[1])
		r.page.advance(lineHeight)
	}
	r.page.advance(sectionGap)
}

// list prints numbered items on shaded bands, repeating the section title
// with a "(continued)" marker on every new page.
func (r *renderer) list(title string, items []string, band rgb) {
	r.page.ensure(20)
	r.sectionTitle(title, 14)
	body := func() {
		r.pdf.SetFont("Helvetica", "", 9)
		r.color(darkGray)
	}
	body()
	for i, item := range items {
		lines := r.split(fmt.Sprintf("%d. %s", i+1, item), r.width-50)
		h := float64(len(lines))*5 + 2
		r.page.reserve(h, func() {
			r.sectionTitle(title+" (continued)", 14)
			body()
		})
		r.pdf.SetFillColor(band.r, band.g, band.b)
		r.pdf.Rect(leftX, r.page.y-2, r.width-2*leftX, h, "F")
		for j, line := range lines {
			r.pdf.Text(25, r.page.y+5*float64(j)+3, string(line))
		}
		r.page.advance(h)
	}
}

func (r *renderer) financial(s Summary) {
	type row struct {
		label, value string
		style        int // 0 normal, 1 detail, 2 total, 3 spacer
	}
	rows := []row{{"Main seats:", money(s.SeatsCost), 0}}
	if s.IndividualSeats > 0 {
		rows = append(rows, row{fmt.Sprintf("  - Individual (%d x %s):", s.IndividualSeats, money(IndividualSeatPrice)), money(s.IndividualCost), 1})
	}
	if s.PairedSeats > 0 {
		rows = append(rows, row{fmt.Sprintf("  - Paired (%d x %s):", s.PairedSeats, money(PairedSeatPrice)), money(s.PairedCost), 1})
	}
	fee := "N/A (independent delegate)"
	if s.DelegationFee > 0 {
		fee = money(s.DelegationFee)
	}
	rows = append(rows,
		row{"Delegation fee:", fee, 0},
		row{style: 3},
		row{"TOTAL DUE:", money(s.Total), 2},
		row{"Equivalent in Bs.:", fmt.Sprintf("Bs. %.2f", s.SecondaryTotal), 0},
		row{"Exchange rate:", fmt.Sprintf("Bs. %.2f/€", s.Rate), 0},
	)

	height := 3.0
	for _, rw := range rows {
		if rw.style != 3 {
			height += lineHeight
		}
	}
	// title and box stay together
	r.page.ensure(lineHeight + 2 + height)
	r.sectionTitle("Financial Summary", 14)

	r.pdf.SetFillColor(240, 255, 240)
	r.pdf.Rect(leftX, r.page.y-2, r.width-2*leftX, height, "F")

	for _, rw := range rows {
		switch rw.style {
		case 3:
			r.page.advance(3)
			continue
		case 2:
			r.pdf.SetFont("Helvetica", "B", 11)
			r.color(primary)
		case 1:
			r.pdf.SetFont("Helvetica", "", 9)
			r.color(midGray)
		default:
			r.pdf.SetFont("Helvetica", "", 10)
			r.color(darkGray)
		}
		r.text(25, r.page.y+3, rw.label)
		value := r.tr(rw.value)
		r.pdf.Text(r.width-25-r.pdf.GetStringWidth(value), r.page.y+3, value)
		r.page.advance(lineHeight)
	}
	r.page.advance(sectionGap)
}

func (r *renderer) paragraphs(title string, paras []string) {
	r.page.ensure(20)
	r.sectionTitle(title, 12)
	r.pdf.SetFont("Helvetica", "", 9)
	r.color(darkGray)
	for _, p := range paras {
		for _, line := range r.split(p, r.width-50) {
			r.page.reserve(5, func() {
				r.pdf.SetFont("Helvetica", "", 9)
				r.color(darkGray)
			})
			r.pdf.Text(25, r.page.y, string(line))
			r.page.advance(5)
		}
		r.page.advance(2)
	}
}

func (r *renderer) footer(now time.Time) {
	y := r.height - 20
	r.pdf.SetDrawColor(primary.r, primary.g, primary.b)
	r.pdf.SetLineWidth(0.5)
	r.pdf.Line(leftX, y-5, r.width-leftX, y-5)
	r.pdf.SetFont("Helvetica", "", 8)
	r.color(rgb{128, 128, 128})
	r.centered(y, r.brand+" - generated automatically")
	r.centered(y+5, "Generated on "+now.Format("02/01/2006 15:04:05")+
		fmt.Sprintf("  |  Page %d of {nb}", r.pdf.PageNo()))
}

func money(v float64) string { return fmt.Sprintf("€%.2f", v) }

func seatCount(reg model.Registration) int {
	if reg.Seats > 0 {
		return reg.Seats
	}
	return len(reg.SeatsRequested)
}

func userType(reg model.Registration) string {
	if reg.UserIsFaculty {
		return "Faculty"
	}
	return "Student"
}

func paymentStatus(reg model.Registration) string {
	if reg.TransactionID != "" {
		return "Pending verification"
	}
	return "Not processed"
}

func registrationDate(reg model.Registration, now time.Time) string {
	if !reg.CreatedAt.IsZero() {
		return reg.CreatedAt.Format("02/01/2006")
	}
	return now.Format("02/01/2006")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func orDefault(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// Package render lays a filled event schema out as a PDF brief.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultTitle is used when the schema has no templateName.
const DefaultTitle = "Event Brief"

// DefaultHeaderKeys are the field names shown above the first section.
var DefaultHeaderKeys = []string{"Event Name", "Event Date", "Venue", "Client Name"}

// Options configures a Renderer.
type Options struct {
	HeaderKeys []string
	// Created stamps the document; zero means now.
	Created time.Time
}

// Renderer turns schemas into PDFs.
type Renderer struct {
	opts Options
	log  *slog.Logger
}

// New creates a Renderer. Nil HeaderKeys use DefaultHeaderKeys.
func New(opts Options, logger *slog.Logger) *Renderer {
	if opts.HeaderKeys == nil {
		opts.HeaderKeys = DefaultHeaderKeys
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{opts: opts, log: logger}
}

// Render writes the schema as a validated PDF to w.
func (r *Renderer) Render(ctx context.Context, schema *domain.EventSchema, w io.Writer) error {
	doc, pages, err := r.Bytes(ctx, schema)
	if err != nil {
		return err
	}
	if _, err := w.Write(doc); err != nil {
		return fmt.Errorf("render: write: %w", err)
	}
	r.log.Debug("render: pdf written", "pages", pages, "bytes", len(doc))
	return nil
}

// Bytes builds the PDF and returns it with its page count.
func (r *Renderer) Bytes(ctx context.Context, schema *domain.EventSchema) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	pdf := r.layout(schema)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("render: output: %w", err)
	}
	pages, err := PageCount(buf.Bytes())
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), pages, nil
}

func (r *Renderer) layout(schema *domain.EventSchema) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := schema.TemplateName
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	created := r.opts.Created
	if created.IsZero() {
		created = time.Now()
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("eventbrief", false)
	pdf.SetCreationDate(created)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, strconv.Itoa(pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 9, tr(title), "", "L", false)
	pdf.Ln(2)

	values := schema.ValuesByName()
	header := false
	for _, key := range r.opts.HeaderKeys {
		v, ok := values[key]
		if !ok {
			continue
		}
		header = true
		row(pdf, tr, key, FormatValue(v))
	}
	if header {
		pdf.Ln(4)
	}

	for _, sec := range schema.Sections {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(30, 60, 110)
		pdf.MultiCell(0, 8, tr(sec.SectionName), "B", "L", false)
		pdf.Ln(2)
		for _, g := range sec.InputFields {
			if g.FieldsHeading != "" {
				pdf.SetFont("Helvetica", "BI", 11)
				pdf.SetTextColor(60, 60, 60)
				pdf.MultiCell(0, 6, tr(g.FieldsHeading), "", "L", false)
			}
			for _, f := range g.Fields {
				row(pdf, tr, fieldLabel(f), FormatValue(f.InputValue))
			}
			pdf.Ln(2)
		}
		pdf.Ln(3)
	}
	return pdf
}

func row(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pdf.GetStringWidth(tr(label+": "))+1, 6, tr(label+":"), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, tr(value), "", "L", false)
}

func fieldLabel(f domain.FormField) string {
	switch {
	case f.InputName != "":
		return f.InputName
	case len(f.HelperText) > 0 && f.HelperText[0] != "":
		return f.HelperText[0]
	default:
		return "Field"
	}
}

// FormatValue renders a field value as one line of text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return domain.Nil
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case domain.Contact:
		return contact(x.Name, x.Email)
	case []string:
		if len(x) == 0 {
			return domain.Nil
		}
		return strings.Join(x, ", ")
	case []any:
		if len(x) == 0 {
			return domain.Nil
		}
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		name, hasName := x["Name"]
		email, hasEmail := x["Email"]
		if hasName && hasEmail && len(x) == 2 {
			return contact(name, FormatValue(email))
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(x[k])
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(x)
	}
}

func contact(name any, email string) string {
	return FormatValue(name) + " (" + email + ")"
}

var configOnce sync.Once

// PageCount validates doc and returns its number of pages.
func PageCount(doc []byte) (int, error) {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(doc), conf)
	if err != nil {
		return 0, fmt.Errorf("render: validate pdf: %w", err)
	}
	return ctx.PageCount, nil
}

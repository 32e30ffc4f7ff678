package pdf

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"furniplan/internal/models"
)

// TranscriptGenerator renders a chat history as a printable PDF.
type TranscriptGenerator interface {
	Transcript(w io.Writer, chat *models.Chat, msgs []models.Message) error
}

type Generator struct {
	FontPath string // путь до TTF, например "assets/fonts/DejaVuSans.ttf"
	fontName string
	now      func() time.Time
}

func NewGenerator(fontPath string) *Generator {
	return &Generator{FontPath: fontPath, fontName: "DejaVu", now: time.Now}
}

func (g *Generator) Transcript(w io.Writer, chat *models.Chat, msgs []models.Message) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	title := chatTitle(chat)
	pdf.SetTitle(title, true)
	pdf.SetAuthor("FurniPlan CRM", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	font, tr := g.setupFont(pdf)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(font, "", 9)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.CellFormat(0, 6, tr("Exported "+g.now().Format("02/01/2006 15:04")), "", 1, "C", false, 0, "")
	hr(pdf)

	kvLine(pdf, font, tr, "Chat", fmt.Sprintf("#%d (%s, %s)", chat.ID, chat.Type, chat.Status))
	if chat.WhatsAppNumber != nil {
		kvLine(pdf, font, tr, "WhatsApp", *chat.WhatsAppNumber)
	}
	if chat.LeadID != nil {
		kvLine(pdf, font, tr, "Lead", fmt.Sprintf("#%d", *chat.LeadID))
	}
	names := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		names = append(names, p.Name)
	}
	kvLine(pdf, font, tr, "Participants", strings.Join(names, ", "))
	pdf.Ln(2)
	hr(pdf)

	if len(msgs) == 0 {
		pdf.SetFont(font, "", 11)
		pdf.CellFormat(0, 8, tr("No messages."), "", 1, "L", false, 0, "")
	}
	for _, m := range msgs {
		sender := fmt.Sprintf("user #%d", m.SenderID)
		if m.Sender != nil && m.Sender.Name != "" {
			sender = m.Sender.Name
		}
		if m.Source != models.SourceHuman {
			sender += " [" + string(m.Source) + "]"
		}

		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s  %s", m.SentAt.Format("02/01/2006 15:04"), sender)), "", 1, "L", false, 0, "")
		pdf.SetFont(font, "", 11)
		if m.Content != nil && *m.Content != "" {
			pdf.MultiCell(0, 6, tr(*m.Content), "", "L", false)
		}
		for _, a := range m.Attachments {
			pdf.SetFont(font, "", 9)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("Attachment: %s (%s) %s", a.Name, a.MimeType, a.URL)), "", "L", false)
		}
		pdf.Ln(2)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render transcript: %w", err)
	}
	return nil
}

// setupFont prefers the configured TTF for full UTF-8; without it the core
// Helvetica font with a cp1252 translator still covers Portuguese text.
func (g *Generator) setupFont(pdf *gofpdf.Fpdf) (string, func(string) string) {
	if g.FontPath != "" {
		if _, err := os.Stat(g.FontPath); err == nil {
			pdf.AddUTF8Font(g.fontName, "", g.FontPath)
			pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
			return g.fontName, func(s string) string { return s }
		}
	}
	return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
}

func chatTitle(chat *models.Chat) string {
	if chat.Title != nil && strings.TrimSpace(*chat.Title) != "" {
		return *chat.Title
	}
	if chat.WhatsAppNumber != nil {
		return *chat.WhatsAppNumber
	}
	return fmt.Sprintf("Chat #%d", chat.ID)
}

func kvLine(pdf *gofpdf.Fpdf, font string, tr func(string) string, key, val string) {
	pdf.SetFont(font, "B", 11)
	pdf.CellFormat(35, 6, tr(key+":"), "", 0, "L", false, 0, "")
	pdf.SetFont(font, "", 11)
	pdf.MultiCell(0, 6, tr(val), "", "L", false)
}

func hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

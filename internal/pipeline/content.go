package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// EmailContent is the text handed to the extraction service: subject plus a
// flattened body that includes readable attachment content.
type EmailContent struct {
	Subject         string
	Body            string
	AttachmentNames []string
}

// ExtractEmailContent reads a raw RFC822 message and flattens it to plain
// text. HTML-only bodies are reduced to text; PDF and spreadsheet attachments
// are appended so rebate terms buried in attachments reach the extractor.
func ExtractEmailContent(raw []byte) (EmailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailContent{}, err
	}

	parts := make([]string, 0, 1+len(env.Attachments))
	if strings.TrimSpace(env.Text) != "" {
		parts = append(parts, strings.TrimSpace(env.Text))
	} else if env.HTML != "" {
		if text := htmlToText(env.HTML); text != "" {
			parts = append(parts, text)
		}
	}

	names := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		names = append(names, filename)

		lower := strings.ToLower(filename)
		var text string
		switch {
		case strings.HasSuffix(lower, ".pdf"):
			text, _ = pdfToText(att.Content)
		case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls"):
			text, _ = xlsxToText(att.Content)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("[attachment: %s]\n%s", filename, strings.TrimSpace(text)))
		}
	}

	return EmailContent{
		Subject:         env.GetHeader("Subject"),
		Body:            strings.Join(parts, "\n\n"),
		AttachmentNames: names,
	}, nil
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style").Remove()
	text := doc.Text()
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimSpace(line))
	}
	return strings.TrimSpace(multiBlank.ReplaceAllString(strings.Join(out, "\n"), "\n\n"))
}

func pdfToText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func xlsxToText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if strings.TrimSpace(c) != "" {
					cells = append(cells, strings.TrimSpace(c))
				}
			}
			if len(cells) > 0 {
				b.WriteString(strings.Join(cells, " | "))
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}

package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractEmailContentPlainText(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "sample_rebate.eml"))
	if err != nil {
		t.Fatal(err)
	}

	content, err := ExtractEmailContent(raw)
	if err != nil {
		t.Fatal(err)
	}
	if content.Subject != "Sell-out rebate proposal PX-789 Q3" {
		t.Fatalf("subject=%q", content.Subject)
	}
	if !strings.Contains(content.Body, "PX-789") {
		t.Fatalf("body missing product code: %q", content.Body)
	}
	if !strings.Contains(content.Body, "2025-07-01") {
		t.Fatalf("body missing period start: %q", content.Body)
	}
	if len(content.AttachmentNames) != 0 {
		t.Fatalf("attachments=%v", content.AttachmentNames)
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head><body>
<p>Rebate of <b>€7,50</b> per unit</p>
<script>alert("x")</script>
<p>Valid until 2025-09-30</p>
</body></html>`

	text := htmlToText(html)
	if !strings.Contains(text, "€7,50") {
		t.Fatalf("text=%q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color:red") {
		t.Fatalf("script/style leaked: %q", text)
	}
}

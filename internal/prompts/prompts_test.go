package prompts

import (
	"strings"
	"testing"
)

func TestEmbeddedStagesPresent(t *testing.T) {
	want := []string{"analysis", "investment", "risk", "verification"}
	got := Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRenderThreadsPriorOutputs(t *testing.T) {
	tmpl, err := Lookup("investment")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, err := tmpl.Render(Data{
		Query:    "Should I buy?",
		Document: DocumentRef{ID: "d1", FileName: "acme.pdf"},
		Prior:    map[string]string{"analysis": "Revenue grew 12%"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, s := range []string{"Should I buy?", "Revenue grew 12%", "BUY, HOLD, or SELL"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in prompt:\n%s", s, out)
		}
	}
}

func TestRiskRendersEveryEarlierStage(t *testing.T) {
	tmpl, err := Lookup("risk")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, err := tmpl.Render(Data{
		Query:    "q",
		Document: DocumentRef{ID: "d1", FileName: "acme.pdf"},
		Prior: map[string]string{
			"verification": "audited 10-K",
			"analysis":     "margins expanding",
			"investment":   "BUY at current levels",
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, s := range []string{"acme.pdf", "audited 10-K", "margins expanding", "BUY at current levels"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in prompt:\n%s", s, out)
		}
	}
}

func TestVerificationMentionsDocumentTool(t *testing.T) {
	tmpl, _ := Lookup("verification")
	out, err := tmpl.Render(Data{Query: "q", Document: DocumentRef{ID: "d1", FileName: "acme.pdf", Pages: 3}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "read_financial_document") || !strings.Contains(out, "3 pages") {
		t.Fatalf("unexpected verification prompt:\n%s", out)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("summary"); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestParseRejectsBadSyntax(t *testing.T) {
	if _, err := Parse("bad", "{{.Query"); err == nil {
		t.Fatalf("expected parse error")
	}
}

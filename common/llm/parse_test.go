package llm

import (
	"strings"
	"testing"
)

func TestParseSummariesPlainArray(t *testing.T) {
	raw := `[{"url":"https://example.com/a","title":"A","summary":"Page about a."},
	         {"url":"https://example.com/b","title":"B","summary":"Page about b."}]`

	summaries, err := ParseSummaries(raw, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].URL != "https://example.com/a" || summaries[0].Summary != "Page about a." {
		t.Errorf("unexpected first summary: %+v", summaries[0])
	}
}

func TestParseSummariesFencedBlock(t *testing.T) {
	raw := "Here are the summaries you asked for:\n```json\n" +
		`[{"url":"u","title":"t","summary":"s"}]` + "\n```\nLet me know if you need more."

	summaries, err := ParseSummaries(raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	if summaries[0].Summary != "s" {
		t.Errorf("unexpected summary: %+v", summaries[0])
	}
}

func TestParseSummariesWrappedObject(t *testing.T) {
	raw := `{"summaries":[{"url":"u","title":"t","summary":"s"}]}`

	summaries, err := ParseSummaries(raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
}

func TestParseSummariesCountMismatch(t *testing.T) {
	raw := `[{"url":"u","title":"t","summary":"s"}]`

	_, err := ParseSummaries(raw, 3)
	if err == nil {
		t.Fatal("expected count mismatch error")
	}
	if !strings.Contains(err.Error(), "expected 3") {
		t.Errorf("error should name the expected count, got: %v", err)
	}
}

func TestParseSummariesEmptySummary(t *testing.T) {
	raw := `[{"url":"u","title":"t","summary":"  "}]`

	if _, err := ParseSummaries(raw, 1); err == nil {
		t.Fatal("expected error for blank summary")
	}
}

func TestParseSummariesGarbage(t *testing.T) {
	if _, err := ParseSummaries("I could not process the pages, sorry.", 2); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestParseDescription(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"description":"An example site."}`, "An example site.", false},
		{"fenced", "```json\n{\"description\":\"Fenced.\"}\n```", "Fenced.", false},
		{"empty", `{"description":""}`, "", true},
		{"garbage", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDescription(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

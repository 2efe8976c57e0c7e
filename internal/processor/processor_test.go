package processor

import (
	"encoding/json"
	"testing"

	"github.com/LJTian/TariffHub/internal/collector"
	"github.com/LJTian/TariffHub/internal/config"
)

func TestProcessFillsIdentityAndEmptySlices(t *testing.T) {
	p := NewSimpleProcessor()
	src := config.Source{Name: "uk_dbt", Group: "retaliation", Source: "UK", URL: "https://gov.uk/feed"}

	out := p.Process(src, collector.FetchResult{})
	if out.Name != "uk_dbt" || out.Group != "retaliation" || out.Source != "UK" || out.SourceURL != "https://gov.uk/feed" {
		t.Fatalf("identity not filled: %+v", out)
	}

	// nil 切片要序列化成 []，而不是 null
	bs, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(bs, &m)
	if _, ok := m["items"].([]any); !ok {
		t.Fatalf("items should be an array: %s", bs)
	}
	if _, ok := m["errors"].([]any); !ok {
		t.Fatalf("errors should be an array: %s", bs)
	}
	if _, ok := m["dcterms_modified"]; ok {
		t.Fatalf("empty dcterms_modified should be omitted: %s", bs)
	}
}

func TestProcessSanitizesAndCaps(t *testing.T) {
	p := NewSimpleProcessor()
	src := config.Source{Name: "cbp_csms", MaxItems: 2}

	in := collector.FetchResult{
		Items: []collector.Item{
			{Title: "  bad \xff byte ", Link: " https://x/1 "},
			{Title: "two"},
			{Title: "three"},
		},
		Errors: []string{"oops \xfe"},
	}
	out := p.Process(src, in)
	if len(out.Items) != 2 {
		t.Fatalf("expected cap of 2, got %d", len(out.Items))
	}
	if out.Items[0].Title != "bad \uFFFD byte" || out.Items[0].Link != "https://x/1" {
		t.Fatalf("item not cleaned: %+v", out.Items[0])
	}
	if out.Errors[0] != "oops \uFFFD" {
		t.Fatalf("error not cleaned: %q", out.Errors[0])
	}
	// 不修改调用方的切片
	if in.Items[0].Title != "  bad \xff byte " {
		t.Fatalf("input mutated: %q", in.Items[0].Title)
	}
}

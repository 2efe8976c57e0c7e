package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/TariffHub/internal/collector"
	"github.com/LJTian/TariffHub/internal/config"
)

// stubFetcher 按预设返回结果，不访问网络
type stubFetcher struct {
	src   config.Source
	items []collector.Item
	err   error
	panic bool
}

func (s *stubFetcher) Name() string              { return s.src.Name }
func (s *stubFetcher) Descriptor() config.Source { return s.src }

func (s *stubFetcher) Fetch(ctx context.Context) (collector.FetchResult, error) {
	if s.panic {
		panic("parser exploded")
	}
	res := collector.NewResult(s.src)
	if s.err != nil {
		return res, s.err
	}
	res.Items = s.items
	return res, nil
}

func testSettings() *config.Settings {
	return config.DefaultSettings()
}

func stubsFor(s *config.Settings) map[string]*stubFetcher {
	out := make(map[string]*stubFetcher)
	for _, src := range s.Sources {
		out[src.Name] = &stubFetcher{src: src, items: []collector.Item{{
			Title: src.Name + " tariff item", Link: "https://example.com/" + src.Name, Published: "2025-01-01",
		}}}
	}
	return out
}

func fetchersOf(s *config.Settings, stubs map[string]*stubFetcher) []collector.Fetcher {
	fs := make([]collector.Fetcher, 0, len(s.Sources))
	for _, src := range s.Sources {
		fs = append(fs, stubs[src.Name])
	}
	return fs
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 4, 5, 6, 7, 890, time.FixedZone("EST", -5*3600))
}

func TestBuildAssemblesEverySource(t *testing.T) {
	s := testSettings()
	agg := New(s, fetchersOf(s, stubsFor(s)), nil, 2)
	agg.now = fixedNow

	snap := agg.Build(context.Background())
	if snap.GeneratedAt != "2025-03-04T10:06:07+00:00" {
		t.Fatalf("GeneratedAt = %q", snap.GeneratedAt)
	}
	if len(snap.About.KeywordFilter) != len(config.DefaultKeywords) {
		t.Fatalf("keyword_filter should list the vocabulary, got %v", snap.About.KeywordFilter)
	}
	for _, name := range []string{"federal_register", "cbp_csms"} {
		if _, ok := snap.Feeds.Top[name]; !ok {
			t.Fatalf("missing top-level feed %s", name)
		}
	}
	ret := snap.Feeds.Groups["retaliation"]
	for _, name := range []string{"eu_commission", "uk_dbt", "china_mofcom", "canada_finance"} {
		if _, ok := ret[name]; !ok {
			t.Fatalf("missing retaliation feed %s", name)
		}
	}
	if got := len(snap.Results()); got != len(s.Sources) {
		t.Fatalf("Results() = %d entries, want %d", got, len(s.Sources))
	}
}

func TestBuildIsolatesFailures(t *testing.T) {
	s := testSettings()
	stubs := stubsFor(s)
	stubs["uk_dbt"].err = errors.New("dial tcp: i/o timeout")
	stubs["cbp_csms"].panic = true

	agg := New(s, fetchersOf(s, stubs), nil, 3)
	snap := agg.Build(context.Background())

	uk := snap.Feeds.Groups["retaliation"]["uk_dbt"]
	if len(uk.Errors) != 1 || uk.Errors[0] != "dial tcp: i/o timeout" {
		t.Fatalf("uk_dbt errors = %v", uk.Errors)
	}
	if len(uk.Items) != 0 || uk.Source != "UK GOV.UK DBT news Atom feed" {
		t.Fatalf("failed feed should still be present with identity: %+v", uk)
	}

	cbp := snap.Feeds.Top["cbp_csms"]
	if len(cbp.Errors) != 1 || !strings.Contains(cbp.Errors[0], "parser exploded") {
		t.Fatalf("panic should be captured as an error, got %v", cbp.Errors)
	}

	for _, r := range snap.Results() {
		if r.Name == "uk_dbt" || r.Name == "cbp_csms" {
			continue
		}
		if len(r.Errors) != 0 || len(r.Items) != 1 {
			t.Fatalf("sibling %s affected by failures: %+v", r.Name, r)
		}
	}
}

func TestMarshalFormatAndRoundTrip(t *testing.T) {
	s := testSettings()
	stubs := stubsFor(s)
	stubs["eu_commission"].items = []collector.Item{{
		Title: "Zölle & <Gegenmaßnahmen> 🚢", Link: "https://ec/1", Category: "Trade",
	}}
	stubs["federal_register"].items = []collector.Item{{
		Title: "Tariff", Link: "https://fr/1", DocumentNumber: "2025-1", Type: "Rule", TermHit: "tariff",
	}}
	agg := New(s, fetchersOf(s, stubs), nil, 0)
	snap := agg.Build(context.Background())

	data, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("}\n")) {
		t.Fatalf("output must end with a newline")
	}
	for _, b := range data {
		if b >= 0x80 {
			t.Fatalf("output must be ASCII only")
		}
	}
	if !bytes.Contains(data, []byte(`Z\u00f6lle & <Gegenma\u00dfnahmen> \ud83d\udea2`)) {
		t.Fatalf("unexpected escaping: %s", data)
	}
	if !bytes.Contains(data, []byte("\n  \"feeds\": {")) {
		t.Fatalf("expected 2-space indentation: %s", data)
	}

	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if back.Feeds.Groups["retaliation"]["eu_commission"].Items[0].Title != "Zölle & <Gegenmaßnahmen> 🚢" {
		t.Fatalf("round trip lost text")
	}

	var first, second map[string]any
	if err := json.Unmarshal(data, &first); err != nil {
		t.Fatalf("json error: %v", err)
	}
	again, err := Marshal(back)
	if err != nil {
		t.Fatalf("Marshal(back) error: %v", err)
	}
	if err := json.Unmarshal(again, &second); err != nil {
		t.Fatalf("json error: %v", err)
	}
	if !reflect.DeepEqual(keyPaths(first, ""), keyPaths(second, "")) {
		t.Fatalf("key sets differ after round trip")
	}
	if !bytes.Equal(data, again) {
		t.Fatalf("re-encoding should be byte-identical")
	}
}

func TestMarshalKeepsHTMLCharacters(t *testing.T) {
	s := testSettings()
	stubs := stubsFor(s)
	stubs["federal_register"].items = []collector.Item{{
		Title: "AT&T <b>", Link: "https://fr/1?a=1&b=2", DocumentNumber: "2025-1",
	}}
	snap := New(s, fetchersOf(s, stubs), nil, 0).Build(context.Background())

	data, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !bytes.Contains(data, []byte(`"title": "AT&T <b>"`)) || !bytes.Contains(data, []byte(`"link": "https://fr/1?a=1&b=2"`)) {
		t.Fatalf("&, < and > must be written as-is: %s", data)
	}
	for _, esc := range []string{`\u0026`, `\u003c`, `\u003e`} {
		if bytes.Contains(data, []byte(esc)) {
			t.Fatalf("found HTML escape %s in output", esc)
		}
	}
	if !bytes.Contains(data, []byte(`"dcterms_modified": null`)) {
		t.Fatalf("canada_finance should always carry dcterms_modified: %s", data)
	}
}

// keyPaths 收集所有对象键的路径，数组元素用 [] 表示
func keyPaths(v any, prefix string) []string {
	var out []string
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			p := prefix + "." + k
			out = append(out, p)
			out = append(out, keyPaths(child, p)...)
		}
	case []any:
		for _, child := range t {
			out = append(out, keyPaths(child, prefix+"[]")...)
		}
	}
	sort.Strings(out)
	return out
}

func TestSummary(t *testing.T) {
	s := testSettings()
	stubs := stubsFor(s)
	stubs["china_mofcom"].items = nil
	snap := New(s, fetchersOf(s, stubs), nil, 0).Build(context.Background())

	want := "cbp_csms_items=1 federal_register_items=1 retaliation_items={canada_finance: 1, china_mofcom: 0, eu_commission: 1, uk_dbt: 1}"
	if got := Summary(snap); got != want {
		t.Fatalf("Summary = %q\nwant      %q", got, want)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "live_intel.json")
	if err := WriteFile(path, []byte("{}\n")); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if err := WriteFile(path, []byte("{\"a\": 1}\n")); err != nil {
		t.Fatalf("WriteFile overwrite error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(got) != "{\"a\": 1}\n" {
		t.Fatalf("content = %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

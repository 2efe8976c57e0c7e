package aggregator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/LJTian/TariffHub/internal/collector"
)

// Snapshot 一次运行的完整输出
type Snapshot struct {
	GeneratedAt string `json:"generated_at"`
	About       About  `json:"about"`
	Feeds       Feeds  `json:"feeds"`
}

type About struct {
	Description   string   `json:"description"`
	KeywordFilter []string `json:"keyword_filter"`
}

// Feeds 顶层数据源与分组数据源（如 retaliation）在 JSON 中处于同一层级
type Feeds struct {
	Top    map[string]collector.FetchResult
	Groups map[string]map[string]collector.FetchResult
}

func (f Feeds) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(f.Top)+len(f.Groups))
	for name, r := range f.Top {
		m[name] = r
	}
	for group, members := range f.Groups {
		if _, dup := m[group]; dup {
			return nil, fmt.Errorf("feeds: group %q collides with a source name", group)
		}
		m[group] = members
	}
	// json.Marshal 总会做 HTML 转义，这里必须和外层编码器保持一致
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON 带 "source" 字段的对象是 FetchResult，其余对象视为分组
func (f *Feeds) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Top = make(map[string]collector.FetchResult)
	f.Groups = make(map[string]map[string]collector.FetchResult)
	for name, msg := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(msg, &fields); err != nil {
			return fmt.Errorf("feeds.%s: %w", name, err)
		}
		if _, ok := fields["source"]; ok {
			var r collector.FetchResult
			if err := json.Unmarshal(msg, &r); err != nil {
				return fmt.Errorf("feeds.%s: %w", name, err)
			}
			r.Name = name
			f.Top[name] = r
			continue
		}
		members := make(map[string]collector.FetchResult)
		if err := json.Unmarshal(msg, &members); err != nil {
			return fmt.Errorf("feeds.%s: %w", name, err)
		}
		for k, r := range members {
			r.Name, r.Group = k, name
			members[k] = r
		}
		f.Groups[name] = members
	}
	return nil
}

// Results 展开所有结果，按 (group, name) 排序，便于日志与指标
func (s *Snapshot) Results() []collector.FetchResult {
	out := make([]collector.FetchResult, 0, len(s.Feeds.Top))
	for _, r := range s.Feeds.Top {
		out = append(out, r)
	}
	for _, members := range s.Feeds.Groups {
		for _, r := range members {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Marshal 生成最终 JSON：两空格缩进、非 ASCII 字符转义为 \uXXXX、末尾带换行。
// 不做 HTML 转义，<、>、& 保持原样。
func Marshal(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	// Encoder 已经写入了结尾换行
	return escapeNonASCII(buf.Bytes()), nil
}

// Unmarshal 解析 Marshal 的输出
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// escapeNonASCII 编码后的 JSON 中非 ASCII 字符只会出现在字符串里，可以逐字符替换
func escapeNonASCII(b []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		switch {
		case r < utf8.RuneSelf:
			out.WriteByte(b[0])
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
		b = b[size:]
	}
	return out.Bytes()
}

// WriteFile 先写临时文件再 rename，避免读者看到写了一半的快照
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Summary 运维用的一行统计，与旧脚本输出格式保持一致
func Summary(s *Snapshot) string {
	var b strings.Builder
	names := make([]string, 0, len(s.Feeds.Top))
	for name := range s.Feeds.Top {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s_items=%d", name, len(s.Feeds.Top[name].Items))
	}

	groups := make([]string, 0, len(s.Feeds.Groups))
	for g := range s.Feeds.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		members := s.Feeds.Groups[g]
		keys := make([]string, 0, len(members))
		for k := range members {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s_items={", g)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %d", k, len(members[k].Items))
		}
		b.WriteByte('}')
	}
	return b.String()
}

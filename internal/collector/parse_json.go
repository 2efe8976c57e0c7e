package collector

import (
	"encoding/json"
	"fmt"
)

// 对应 federalregister.gov /api/v1/documents.json 的响应结构，只保留用到的字段
type federalRegisterResp struct {
	Count   int                  `json:"count"`
	Results []federalRegisterDoc `json:"results"`
}

type federalRegisterDoc struct {
	DocumentNumber  string `json:"document_number"`
	PublicationDate string `json:"publication_date"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	Type            string `json:"type"`
	HTMLURL         string `json:"html_url"`
	RawTextURL      string `json:"raw_text_url"`
}

// ParseFederalRegister 把 results 列表映射成 Item；既没有 document_number 也没有 html_url 的条目直接丢弃
func ParseFederalRegister(body []byte) ([]Item, error) {
	var resp federalRegisterResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode federal register response: %w", ErrParse, err)
	}

	items := make([]Item, 0, len(resp.Results))
	for _, doc := range resp.Results {
		it := Item{
			Title:          Normalize(doc.Title),
			Link:           doc.HTMLURL,
			Published:      doc.PublicationDate,
			Description:    Normalize(doc.Abstract),
			DocumentNumber: doc.DocumentNumber,
			Type:           doc.Type,
			RawTextURL:     doc.RawTextURL,
		}
		if it.Key() == "" {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=20" validate:"gte=1,lte=250"` // Min 1, Max 250
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(token string) (Cursor, error) {
	var cursor Cursor
	b, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return cursor, err
	}
	if err := json.Unmarshal(b, &cursor); err != nil {
		return cursor, err
	}
	return cursor, nil
}

// BuildCursorPageInfo derives page info for a result slice fetched with one
// extra row. items must be fetched with limit pageSize+1.
func BuildCursorPageInfo[T any](items []*T, pageSize int, token func(*T) string) *PageInfo {
	info := &PageInfo{}
	if pageSize <= 0 || len(items) <= pageSize {
		return info
	}

	info.HasMore = true
	last := items[pageSize-1]
	if last != nil {
		info.NextPageToken = token(last)
	}
	return info
}

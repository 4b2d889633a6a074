package serializer

import (
	"strconv"

	"github.com/mdouchement/paygate/internal/model"
)

// ContentMetadata serializes the public part of a content item.
// The content locator is never part of it.
func ContentMetadata(m *model.ContentItem) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"title":       m.Title,
		"description": m.Description,
		"price":       strconv.FormatUint(m.Price, 10),
		"creator":     m.Creator,
	}
}

// Content serializes a content item unlocked by an access receipt.
func Content(m *model.ContentItem) map[string]any {
	r := ContentMetadata(m)
	r["contentUrl"] = m.ContentURL
	return r
}

// Contents serializes the public part of the given content items.
func Contents(items []*model.ContentItem) []map[string]any {
	r := make([]map[string]any, 0, len(items))
	for _, item := range items {
		r = append(r, ContentMetadata(item))
	}
	return r
}

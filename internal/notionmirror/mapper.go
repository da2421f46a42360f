package notionmirror

import (
	"github.com/jomei/notionapi"

	"github.com/danangw/duitku/internal/domain"
)

// EntryToProperties converts one ledger entry to Notion page properties.
// The Entry ID title property is the idempotency key.
func EntryToProperties(e domain.Entry) notionapi.Properties {
	props := notionapi.Properties{
		"Entry ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: e.ID},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: (*notionapi.Date)(&e.Date),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: e.Amount,
		},
		"Kind": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Kind)},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Status)},
		},
	}

	if e.Account != "" {
		props["Account"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: e.Account},
		}
	}
	if e.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: e.Category},
		}
	}
	if e.Subcategory != "" {
		props["Subcategory"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: e.Subcategory},
		}
	}
	if e.Note != "" {
		props["Note"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: e.Note},
				},
			},
		}
	}

	return props
}

// pageEntryID extracts the Entry ID title from a mirrored page, or "".
func pageEntryID(page notionapi.Page) string {
	prop, ok := page.Properties["Entry ID"].(*notionapi.TitleProperty)
	if !ok || len(prop.Title) == 0 {
		return ""
	}
	return prop.Title[0].PlainText
}

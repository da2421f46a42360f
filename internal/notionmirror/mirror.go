package notionmirror

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/danangw/duitku/internal/domain"
)

// Source reads the entries to mirror.
type Source interface {
	Entries(ctx context.Context, year, month int) ([]domain.Entry, error)
}

// Stats reports what one mirror run did.
type Stats struct {
	Created int
	Updated int
	Deleted int
}

// Mirror pushes one month of ledger entries into the Notion database. Pages
// are keyed by entry ID: existing pages are updated in place, pages whose
// entry no longer exists are archived. dryRun logs the plan without writing.
func Mirror(ctx context.Context, source Source, notion NotionService, databaseID string, year, month int, dryRun bool, log zerolog.Logger) (*Stats, error) {
	log.Info().
		Int("year", year).
		Int("month", month).
		Bool("dry_run", dryRun).
		Msg("Starting ledger mirror to Notion")

	entries, err := source.Entries(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	validIDs := make(map[string]bool, len(entries))
	for _, e := range entries {
		validIDs[e.ID] = true
	}

	pages, err := queryAllPages(ctx, notion, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	pageByEntryID := make(map[string]notionapi.Page, len(pages))
	stats := &Stats{}

	for _, page := range pages {
		entryID := pageEntryID(page)
		if entryID != "" && validIDs[entryID] {
			pageByEntryID[entryID] = page
			continue
		}

		if dryRun {
			log.Info().
				Str("entry_id", entryID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			stats.Deleted++
			continue
		}
		if err := notion.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("entry_id", entryID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		stats.Deleted++
	}

	for _, e := range entries {
		props := EntryToProperties(e)

		if page, exists := pageByEntryID[e.ID]; exists {
			if dryRun {
				log.Info().Str("entry_id", e.ID).Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
				continue
			}
			if _, err := notion.UpdatePage(ctx, string(page.ID), props); err != nil {
				log.Warn().Err(err).Str("entry_id", e.ID).Msg("Failed to update Notion page")
				continue
			}
			stats.Updated++
			continue
		}

		if dryRun {
			log.Info().Str("entry_id", e.ID).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}
		if _, err := notion.CreatePage(ctx, databaseID, props); err != nil {
			log.Warn().Err(err).Str("entry_id", e.ID).Msg("Failed to create Notion page")
			continue
		}
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Msg("Ledger mirror finished")

	return stats, nil
}

// queryAllPages pages through the whole database.
func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    100,
		}
		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, err
		}

		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

package badger

import (
	"time"

	"github.com/TobiSchelling/newsjuice/internal/store"
)

func toRecord(r store.Row) chunkRecord {
	rec := chunkRecord{
		ArticleID:  r.ArticleID,
		ChunkIndex: r.ChunkIndex,
		Author:     r.Author,
		Title:      r.Title,
		Summary:    r.Summary,
		SourceLink: r.SourceLink,
		FetchedAt:  r.FetchedAt.UTC().Format(time.RFC3339Nano),
		SourceType: r.SourceType,
		Text:       r.Text,
		Embedding:  r.Embedding,
		Model:      r.Model,
	}
	if r.PublishedAt != nil {
		p := r.PublishedAt.UTC().Format(time.RFC3339Nano)
		rec.PublishedAt = &p
	}
	return rec
}

func (rec chunkRecord) row() store.Row {
	r := store.Row{
		ArticleID:  rec.ArticleID,
		ChunkIndex: rec.ChunkIndex,
		Author:     rec.Author,
		Title:      rec.Title,
		Summary:    rec.Summary,
		SourceLink: rec.SourceLink,
		SourceType: rec.SourceType,
		Text:       rec.Text,
		Embedding:  rec.Embedding,
		Model:      rec.Model,
	}
	r.FetchedAt, _ = time.Parse(time.RFC3339Nano, rec.FetchedAt)
	if rec.PublishedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *rec.PublishedAt); err == nil {
			r.PublishedAt = &t
		}
	}
	return r
}

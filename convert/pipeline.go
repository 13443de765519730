package convert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sbc/config"
	"sbc/fetch"
	"sbc/shamela"
	"sbc/state"
)

// Pages a single chapter is allowed to span, guards against pagination loops.
const maxChapterPages = 500

// pageSegment is the extracted content of a single site page. Note numbers
// restart on every page so segments stay separate until global ids are
// assigned.
type pageSegment struct {
	body  string
	notes []shamela.LocalNote
}

// rawChapter is a chapter after fetch and extraction but before global note
// numbering.
type rawChapter struct {
	id       int
	order    int
	title    string
	segments []pageSegment
}

// buildBook runs the full acquisition pipeline. A chapter that cannot be
// fetched or produces no text fails the run, a book with silently missing
// chapters is worse than no book.
func buildBook(ctx context.Context, client *fetch.Client, bookURL string, format config.OutputFmt, env *state.LocalEnv, log *zap.Logger) (*shamela.Book, error) {
	indexHTML, err := client.Text(ctx, bookURL, "")
	if err != nil {
		return nil, err
	}

	meta := shamela.ParseBookMeta(indexHTML)
	meta.Language = env.Cfg.Document.Language

	entries, err := shamela.ParseTOC(bookURL, indexHTML)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no chapters found on the index page: %s", bookURL)
	}
	if env.Limit > 0 && env.Limit < len(entries) {
		log.Info("Limiting conversion", zap.Int("chapters", env.Limit), zap.Int("available", len(entries)))
		entries = entries[:env.Limit]
	}

	log.Info("Book discovered", zap.String("title", meta.Title), zap.Int("chapters", len(entries)))

	bookID, err := shamela.ExtractBookID(bookURL)
	if err != nil {
		return nil, err
	}
	// next chapter's first page, used to stop page chaining
	nextStart := make(map[int]int, len(entries))
	for i := 0; i+1 < len(entries); i++ {
		nextStart[entries[i].ID] = entries[i+1].ID
	}

	// Workers write each into their own slot, reading order is restored from
	// slice positions afterwards.
	raw := make([]*rawChapter, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(env.Cfg.Fetch.Workers)
	for i, entry := range entries {
		g.Go(func() error {
			ch, err := fetchChapter(gctx, client, bookURL, bookID, entry, nextStart[entry.ID], env, log)
			if err != nil {
				return fmt.Errorf("chapter %d (%s): %w", entry.Order, entry.Title, err)
			}
			raw[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	book := assembleBook(meta, format, raw, log)

	if env.Cfg.Document.Images.Embed {
		embedImages(ctx, client, book, bookURL, &env.Cfg.Document.Images, log)
	}
	if cover, err := acquireCover(ctx, client, book, env, log); err != nil {
		return nil, err
	} else if cover != nil {
		book.Cover = cover
	}
	return book, nil
}

// fetchChapter pulls all pages of a chapter following the forward pagination
// arrow, extracts the marked content of each page and concatenates the
// fragments. stopAt is the first page of the next chapter, zero for the last
// one.
func fetchChapter(ctx context.Context, client *fetch.Client, bookURL, bookID string, entry shamela.TocEntry, stopAt int, env *state.LocalEnv, log *zap.Logger) (*rawChapter, error) {
	extractor := shamela.NewExtractor(env.Cfg.Document.CombineContainers)

	ch := &rawChapter{id: entry.ID, order: entry.Order, title: entry.Title}

	var (
		visited = make(map[int]struct{})
		pageID  = entry.ID
	)
	for range maxChapterPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, loop := visited[pageID]; loop {
			log.Warn("Pagination loop detected", zap.Int("chapter", entry.ID), zap.Int("page", pageID))
			break
		}
		visited[pageID] = struct{}{}

		pageURL := fmt.Sprintf("%s/%d", bookURL, pageID)
		pageHTML, err := client.Text(ctx, pageURL, bookURL)
		if err != nil {
			return nil, err
		}

		if pageID == entry.ID {
			if t := shamela.ExtractPageTitle(pageHTML); t != "" {
				ch.title = t
			}
		}

		fragment := extractor.Extract(pageHTML)
		if fragment == "" {
			fragment = shamela.FallbackContent(pageHTML)
			if fragment != "" {
				log.Debug("Falling back to page rescan", zap.String("page", pageURL))
			}
		}
		if fragment != "" {
			rest, notes := shamela.ExtractEndnotes(fragment)
			ch.segments = append(ch.segments, pageSegment{body: rest, notes: notes})
		}

		next, ok := shamela.NextPageID(pageHTML, bookID)
		if !ok || next == pageID || (stopAt != 0 && next >= stopAt) {
			break
		}
		pageID = next
	}

	if len(ch.segments) == 0 {
		return nil, errors.New("no text content found")
	}
	return ch, nil
}

package convert

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"sbc/config"
	"sbc/shamela"
)

// assembleBook performs the single-threaded part of the pipeline: global note
// numbering, reference linking, heading anchors and section attribution. It
// walks chapters strictly in reading order so note ids come out 1-based,
// gapless and reproducible regardless of how fetch workers interleaved.
func assembleBook(meta shamela.BookMeta, format config.OutputFmt, raw []*rawChapter, log *zap.Logger) *shamela.Book {
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].order < raw[j].order })

	book := &shamela.Book{
		Meta:         meta,
		OutputFormat: format,
		SubTOC:       make(map[int][]shamela.SubHeading),
	}

	nextID := 1
	for _, ch := range raw {
		var (
			parts      []string
			firstNote  = len(book.Notes)
			notesCount int
		)
		for _, seg := range ch.segments {
			numbers := make(map[string]int, len(seg.notes))
			for _, n := range seg.notes {
				numbers[n.Number] = nextID
				book.Notes = append(book.Notes, shamela.GlobalNote{
					ID:        nextID,
					ChapterID: ch.id,
					Text:      n.Text,
				})
				nextID++
				notesCount++
			}
			parts = append(parts, shamela.LinkNoteRefs(seg.body, numbers))
		}
		body := strings.Join(parts, "\n")

		body, subs := shamela.AddHeadingAnchors(body, ch.id)
		if len(subs) > 0 {
			book.SubTOC[ch.id] = subs
		}
		for gid, secID := range shamela.NearestSections(body) {
			if at := gid - 1; at >= firstNote && at < len(book.Notes) {
				book.Notes[at].SectionID = secID
			}
		}

		book.Chapters = append(book.Chapters, shamela.Chapter{
			ID:    ch.id,
			Order: ch.order,
			Title: ch.title,
			Body:  body,
		})
		log.Debug("Chapter assembled",
			zap.Int("id", ch.id), zap.String("title", ch.title),
			zap.Int("pages", len(ch.segments)), zap.Int("notes", notesCount), zap.Int("headings", len(subs)))
	}

	log.Info("Book assembled", zap.Int("chapters", len(book.Chapters)), zap.Int("notes", len(book.Notes)))
	return book
}

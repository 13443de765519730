package convert

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"go.uber.org/zap"

	"sbc/config"
	"sbc/fetch"
	"sbc/shamela"
	"sbc/utils/images"
)

var imgSrcRe = regexp.MustCompile(`(?i)(<img[^>]*\bsrc=")([^"]+)("[^>]*/?>)`)

// embedImages walks chapter bodies in reading order, downloads every
// referenced picture that passes the filters and rewrites src attributes to
// point inside the book. Failed or filtered downloads lose the img element
// but never the run. Sequential on purpose, asset names must be stable.
func embedImages(ctx context.Context, client *fetch.Client, book *shamela.Book, bookURL string, cfg *config.ImagesConfig, log *zap.Logger) {
	base := baseURL(bookURL)
	named := make(map[string]string) // remote url -> local name
	count := 0

	for ci := range book.Chapters {
		ch := &book.Chapters[ci]
		ch.Body = imgSrcRe.ReplaceAllStringFunc(ch.Body, func(m string) string {
			parts := imgSrcRe.FindStringSubmatch(m)
			src := resolveURL(base, parts[2])
			if src == "" {
				return ""
			}
			if name, done := named[src]; done {
				if name == "" {
					return ""
				}
				return parts[1] + "images/" + name + parts[3]
			}

			asset, ok := downloadImage(ctx, client, src, bookURL, cfg, log)
			if !ok {
				named[src] = ""
				return ""
			}
			count++
			asset.Name = fmt.Sprintf("img%04d%s", count, asset.Name)
			named[src] = asset.Name
			book.Images = append(book.Images, *asset)
			return parts[1] + "images/" + asset.Name + parts[3]
		})
	}
	if count > 0 {
		log.Info("Images embedded", zap.Int("count", count))
	}
}

// downloadImage fetches and validates one picture. The returned asset carries
// only the file extension in Name, the caller owns final naming.
func downloadImage(ctx context.Context, client *fetch.Client, src, referer string, cfg *config.ImagesConfig, log *zap.Logger) (*shamela.ImageAsset, bool) {
	data, _, err := client.Bytes(ctx, src, referer)
	if err != nil {
		log.Warn("Unable to download image, dropping it", zap.String("url", src), zap.Error(err))
		return nil, false
	}
	if len(data) < cfg.MinBytes {
		log.Debug("Image too small, dropping it", zap.String("url", src), zap.Int("bytes", len(data)))
		return nil, false
	}

	kind, err := filetype.Match(data)
	if err != nil || !supportedImageType(kind) {
		log.Debug("Unsupported image type, dropping it", zap.String("url", src))
		return nil, false
	}

	w, h, err := images.Size(data)
	if err != nil {
		log.Warn("Undecodable image, dropping it", zap.String("url", src), zap.Error(err))
		return nil, false
	}
	if w < cfg.MinWidth || h < cfg.MinHeight {
		log.Debug("Image dimensions below threshold, dropping it",
			zap.String("url", src), zap.Int("width", w), zap.Int("height", h))
		return nil, false
	}

	return &shamela.ImageAsset{
		Name:     "." + kind.Extension,
		Data:     data,
		MimeType: kind.MIME.Value,
	}, true
}

func supportedImageType(kind types.Type) bool {
	switch kind.Extension {
	case "jpg", "png", "gif":
		return true
	}
	return false
}

func baseURL(bookURL string) string {
	// scheme://host
	if at := strings.Index(bookURL, "://"); at > 0 {
		if slash := strings.IndexByte(bookURL[at+3:], '/'); slash > 0 {
			return bookURL[:at+3+slash]
		}
	}
	return bookURL
}

func resolveURL(base, src string) string {
	src = strings.TrimSpace(src)
	switch {
	case src == "" || strings.HasPrefix(src, "data:"):
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		return base + src
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return src
	}
	return ""
}

package convert

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"net/url"
	"os"
	"regexp"
	"text/template"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"sbc/config"
	"sbc/fetch"
	"sbc/shamela"
	"sbc/state"
	"sbc/utils/images"
)

//go:embed cover.svg.tmpl
var coverSVGTemplate string

// How many search hits to try before giving up on a search engine.
const maxCoverCandidates = 8

var (
	bingImageRe   = regexp.MustCompile(`murl&quot;:&quot;(https?://[^&]+?)&quot;`)
	ddgImageRe    = regexp.MustCompile(`(https?://[^"'\s&]+?\.(?:jpe?g|png))`)
	googleImageRe = regexp.MustCompile(`"ou":"(https?://[^"]+?)"`)
)

// acquireCover produces the book cover according to configuration. Search
// falling back to a generated cover is not an error, an unreadable cover file
// is.
func acquireCover(ctx context.Context, client *fetch.Client, book *shamela.Book, env *state.LocalEnv, log *zap.Logger) (*shamela.ImageAsset, error) {
	cfg := &env.Cfg.Document.Images.Cover

	switch cfg.Mode {
	case config.CoverModeNone:
		return nil, nil
	case config.CoverModeFile:
		return coverFromFile(cfg)
	case config.CoverModeSearch:
		if asset := searchCover(ctx, client, book, cfg, env.Cfg.Document.Images.JPEGQuality, log); asset != nil {
			return asset, nil
		}
		log.Info("Cover search came up empty, generating one")
		fallthrough
	case config.CoverModeGenerate:
		return generateCover(&book.Meta, cfg, env.Cfg.Document.Images.JPEGQuality)
	}
	return nil, nil
}

func coverFromFile(cfg *config.CoverConfig) (*shamela.ImageAsset, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("cover mode is %q but no cover path is configured", cfg.Mode)
	}
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to read cover image: %w", err)
	}
	kind, err := filetype.Match(data)
	if err != nil || (kind.Extension != "jpg" && kind.Extension != "png") {
		return nil, fmt.Errorf("cover image %q is not a jpeg or png", cfg.Path)
	}
	return &shamela.ImageAsset{
		Name:     "cover." + kind.Extension,
		Data:     data,
		MimeType: kind.MIME.Value,
	}, nil
}

// searchCover tries image search engines in a fixed order and takes the first
// hit that passes the cover filters. Best effort all the way down.
func searchCover(ctx context.Context, client *fetch.Client, book *shamela.Book, cfg *config.CoverConfig, quality int, log *zap.Logger) *shamela.ImageAsset {
	query := cfg.Query
	if query == "" {
		query = book.Meta.Title
		if book.Meta.Author != "" {
			query += " " + book.Meta.Author
		}
		query += " غلاف كتاب"
	}
	q := url.QueryEscape(query)

	engines := []struct {
		name string
		url  string
		re   *regexp.Regexp
	}{
		{"bing", "https://www.bing.com/images/search?q=" + q, bingImageRe},
		{"duckduckgo", "https://html.duckduckgo.com/html/?q=" + q, ddgImageRe},
		{"google", "https://www.google.com/search?tbm=isch&q=" + q, googleImageRe},
	}

	for _, engine := range engines {
		page, err := client.Text(ctx, engine.url, "")
		if err != nil {
			log.Debug("Cover search request failed", zap.String("engine", engine.name), zap.Error(err))
			continue
		}
		candidates := engine.re.FindAllStringSubmatch(page, maxCoverCandidates)
		for _, m := range candidates {
			if asset := tryCoverCandidate(ctx, client, m[1], cfg, quality, log); asset != nil {
				log.Info("Cover found", zap.String("engine", engine.name), zap.String("url", m[1]))
				return asset
			}
		}
	}
	return nil
}

func tryCoverCandidate(ctx context.Context, client *fetch.Client, src string, cfg *config.CoverConfig, quality int, log *zap.Logger) *shamela.ImageAsset {
	data, _, err := client.Bytes(ctx, src, "")
	if err != nil {
		log.Debug("Cover candidate download failed", zap.String("url", src), zap.Error(err))
		return nil
	}
	if len(data) < cfg.MinBytes {
		return nil
	}
	kind, err := filetype.Match(data)
	if err != nil || (kind.Extension != "jpg" && kind.Extension != "png") {
		return nil
	}
	w, h, err := images.Size(data)
	if err != nil || w < cfg.MinWidth || h < cfg.MinHeight {
		return nil
	}
	aspect := float64(h) / float64(w)
	if cfg.AspectMin > 0 && aspect < cfg.AspectMin {
		return nil
	}
	if cfg.AspectMax > 0 && aspect > cfg.AspectMax {
		return nil
	}

	ext, mime := kind.Extension, kind.MIME.Value
	if w > cfg.Width*2 || h > cfg.Height*2 {
		// huge covers only waste space, scale into twice the target box
		img, _, err := images.Decode(data)
		if err != nil {
			return nil
		}
		data, err = images.EncodeJPEG(images.FitDown(img, cfg.Width*2, cfg.Height*2), quality)
		if err != nil {
			return nil
		}
		ext, mime = "jpg", "image/jpeg"
	} else if ext == "png" && cfg.ConvertPNGToJPEG {
		converted, err := images.ToJPEG(data, quality)
		if err != nil {
			log.Debug("Unable to convert cover to jpeg", zap.String("url", src), zap.Error(err))
			return nil
		}
		data, ext, mime = converted, "jpg", "image/jpeg"
	}
	return &shamela.ImageAsset{
		Name:     "cover." + ext,
		Data:     data,
		MimeType: mime,
	}
}

type coverValues struct {
	Width     int
	Height    int
	Title     string
	Author    string
	Publisher string
}

// generateCover renders the built-in SVG cover with the book metadata and
// rasterizes it to a jpeg.
func generateCover(meta *shamela.BookMeta, cfg *config.CoverConfig, quality int) (*shamela.ImageAsset, error) {
	tmpl, err := template.New("cover").Parse(coverSVGTemplate)
	if err != nil {
		return nil, fmt.Errorf("unable to parse cover template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, coverValues{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Title:     html.EscapeString(meta.Title),
		Author:    html.EscapeString(meta.Author),
		Publisher: html.EscapeString(meta.Publisher),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to expand cover template: %w", err)
	}

	img, err := images.RasterizeSVG(buf.Bytes(), cfg.Width, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("unable to rasterize cover: %w", err)
	}
	data, err := images.EncodeJPEG(img, quality)
	if err != nil {
		return nil, err
	}
	return &shamela.ImageAsset{
		Name:     "cover.jpg",
		Data:     data,
		MimeType: "image/jpeg",
	}, nil
}

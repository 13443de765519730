// Package convert drives the whole pipeline: discover the book on the site,
// pull chapter pages through the polite fetcher, extract and link the text
// and hand the assembled book to the packaging layer.
package convert

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"sbc/config"
	"sbc/convert/epub"
	"sbc/fetch"
	"sbc/shamela"
	"sbc/state"
)

//go:embed default.css
var defaultStylesheet []byte

var bookURLRe = regexp.MustCompile(`^https?://[\w.:-]+/book/\d+$`)

// Run implements the convert command.
func Run(ctx context.Context, cmd *cli.Command) (rerr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := strings.TrimRight(cmd.Args().Get(0), "/")
	if len(src) == 0 {
		return errors.New("no book url has been specified")
	}
	if !bookURLRe.MatchString(src) {
		return fmt.Errorf("not a book index url: %s", src)
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		dst = "."
	}
	var err error
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format, err := config.ParseOutputFmt(cmd.String("to"))
	if err != nil {
		log.Warn("Unknown output format requested, switching to epub2", zap.Error(err))
		format = config.OutputFmtEpub2
	}

	env.DefaultStyle = defaultStylesheet
	if env.Cfg.Document.StylesheetPath != "" {
		data, err := os.ReadFile(env.Cfg.Document.StylesheetPath)
		if err != nil {
			return fmt.Errorf("unable to read style css from %q: %w", env.Cfg.Document.StylesheetPath, err)
		}
		env.DefaultStyle = data
	}

	env.Overwrite = cmd.Bool("overwrite")
	env.NoCache = cmd.Bool("nocache")
	env.Limit = int(cmd.Int("limit"))

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Processing ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else {
			log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
		}
	}(time.Now())

	client, closeCache, err := newFetchClient(env, log)
	if err != nil {
		return err
	}
	defer closeCache()

	book, err := buildBook(ctx, client, src, format, env, log)
	if err != nil {
		return err
	}

	outputName := buildOutputPath(&book.Meta, dst, format, env)
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := epub.Generate(ctx, book, outputName, &env.Cfg.Document, log); err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}

	if env.Rpt != nil {
		env.Rpt.Store("result"+filepath.Ext(outputName), outputName)
	}
	return nil
}

// DumpTOC implements the toc command, prints what the convert command would
// use as the chapter list.
func DumpTOC(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("toc")

	src := strings.TrimRight(cmd.Args().Get(0), "/")
	if len(src) == 0 {
		return errors.New("no book url has been specified")
	}
	if !bookURLRe.MatchString(src) {
		return fmt.Errorf("not a book index url: %s", src)
	}

	env.NoCache = cmd.Bool("nocache")

	client, closeCache, err := newFetchClient(env, log)
	if err != nil {
		return err
	}
	defer closeCache()

	indexHTML, err := client.Text(ctx, src, "")
	if err != nil {
		return err
	}
	meta := shamela.ParseBookMeta(indexHTML)
	entries, err := shamela.ParseTOC(src, indexHTML)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", meta.Title)
	if meta.Author != "" {
		fmt.Printf("%s\n", meta.Author)
	}
	fmt.Printf("\n")
	for _, e := range entries {
		fmt.Printf("%4d  %-8d %s\n", e.Order, e.ID, e.Title)
		for _, alias := range e.Aliases {
			fmt.Printf("%4s  %-8s + %s\n", "", "", alias)
		}
	}
	log.Debug("Index parsed", zap.Int("chapters", len(entries)))
	return nil
}

func newFetchClient(env *state.LocalEnv, log *zap.Logger) (*fetch.Client, func(), error) {
	var cache *fetch.Cache
	if !env.NoCache {
		var err error
		if cache, err = fetch.OpenCache(env.Cfg.Fetch.CachePath); err != nil {
			return nil, nil, err
		}
	}
	client := fetch.NewClient(&env.Cfg.Fetch, cache, log)
	return client, func() {
		if err := cache.Close(); err != nil {
			log.Warn("Unable to close page cache", zap.Error(err))
		}
	}, nil
}

// Package commands implements program subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"fontpipe/archive"
	"fontpipe/assets"
	"fontpipe/config"
	"fontpipe/css"
	"fontpipe/state"
	"fontpipe/transform"
)

// Transformer is what processing of stylesheets needs from the pipeline.
type Transformer interface {
	Transform(ctx context.Context, id, code string, relative bool) (string, bool, error)
	TransformBundle(ctx context.Context, assets map[string]string) (map[string]string, error)
	Preloads() *transform.PreloadMap
}

type transformOptions struct {
	// Download proxied fonts into this directory when not empty.
	Download string
	// Manifest is bundler manifest to add font preloads to.
	Manifest       string
	BuildAssetsDir string
	Entry          string
	// HTML adds preload links to documents of processed directory.
	HTML bool
	// Names decodes legacy names of archive entries.
	Names *encoding.Decoder
}

type job struct {
	tr    Transformer
	proxy *assets.Proxy
	rpt   *config.Report
	out   io.Writer
	opts  transformOptions
	log   *zap.Logger
}

func Transform(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("transform")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	dst := cmd.Args().Get(1)
	if len(dst) > 0 {
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	opts := transformOptions{
		Download:       cmd.String("download"),
		Manifest:       cmd.String("manifest"),
		BuildAssetsDir: cmd.String("build-assets-dir"),
		Entry:          cmd.String("entry"),
		HTML:           cmd.Bool("html"),
	}

	// zip does not define file name encoding, old archives may need archaic
	// code page forced
	if cp := cmd.String("force-zip-cp"); len(cp) > 0 {
		enc, err := ianaindex.IANA.Encoding(cp)
		if err != nil || enc == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
		} else {
			opts.Names = enc.NewDecoder()
			n, _ := ianaindex.IANA.Name(enc)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	if len(opts.Download) > 0 && env.Proxy == nil {
		log.Warn("Font proxy is disabled in configuration, nothing to download")
		opts.Download = ""
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	j := &job{tr: env.Transformer, proxy: env.Proxy, rpt: env.Rpt, out: output(cmd), opts: opts, log: log}
	return j.process(ctx, src, dst)
}

// process determines the input type (directory, archive, path inside archive
// or single stylesheet) and handles it, then performs requested post
// processing.
func (j *job) process(ctx context.Context, src, dst string) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := j.processDir(ctx, head, dst); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := archive.IsArchive(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := j.processArchive(ctx, head, filepath.ToSlash(tail), dst); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if len(tail) == 0 && transform.IsCSS(head) {
			if err := j.processFile(ctx, head, dst); err != nil {
				return fmt.Errorf("unable to process stylesheet: %w", err)
			}
			break
		}
		return fmt.Errorf("input was not recognized as stylesheet (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return j.finish(ctx)
}

// processFile transforms single stylesheet. Result goes to dst file, into
// dst directory or to output stream when dst is empty.
func (j *job) processFile(ctx context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	name := filepath.Base(src)

	j.storeInputs(map[string]string{name: string(data)})
	code, changed, err := j.tr.Transform(ctx, name, string(data), false)
	if err != nil {
		return err
	}
	if !changed {
		j.log.Info("Nothing to change", zap.String("file", src))
	}
	j.rpt.StoreData("out/"+config.CleanFileName(name), []byte(code))

	if len(dst) == 0 {
		_, err = io.WriteString(j.out, code)
		return err
	}
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, name)
	}
	return writeFile(dst, code)
}

// processDir transforms every stylesheet under dir as single bundle. Changed
// files are written under dst keeping directory structure, in place when dst
// is empty.
func (j *job) processDir(ctx context.Context, dir, dst string) error {
	sheets := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			j.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() || !transform.IsCSS(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			j.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		sheets[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return err
	}
	if len(sheets) == 0 {
		j.log.Debug("Nothing to process", zap.String("dir", dir))
		return nil
	}

	if len(dst) == 0 {
		dst = dir
	}
	j.storeInputs(sheets)
	changed, err := j.tr.TransformBundle(ctx, sheets)
	if werr := j.writeChanged(dst, changed); werr != nil {
		err = multierr.Append(err, werr)
	}
	if err != nil {
		return err
	}
	if j.opts.HTML {
		return j.injectHTML(ctx, dir, dst)
	}
	return nil
}

// processArchive transforms stylesheets under pathIn of the archive as
// single bundle. When dst names zip file archive copy with changed
// stylesheets is produced, otherwise changed files are written under dst
// directory (current one by default).
func (j *job) processArchive(ctx context.Context, arc, pathIn, dst string) error {
	opts := archive.Options{Prefix: pathIn, Match: transform.IsCSS, Names: j.opts.Names}
	sheets, err := archive.ReadFiles(arc, opts)
	if err != nil {
		return err
	}
	if len(sheets) == 0 {
		j.log.Debug("Nothing to process", zap.String("archive", arc), zap.String("path", pathIn))
		return nil
	}

	j.storeInputs(sheets)
	changed, err := j.tr.TransformBundle(ctx, sheets)
	if strings.EqualFold(filepath.Ext(dst), ".zip") {
		for _, name := range slices.Sorted(maps.Keys(changed)) {
			j.rpt.StoreData("out/"+name, []byte(changed[name]))
		}
		if werr := archive.Rewrite(arc, dst, changed, opts); werr != nil {
			return multierr.Append(err, werr)
		}
		return err
	}

	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	return multierr.Append(err, j.writeChanged(dst, changed))
}

// storeInputs puts original stylesheets and their parse trees into debug
// report.
func (j *job) storeInputs(sheets map[string]string) {
	if j.rpt == nil {
		return
	}
	p := css.NewParser(j.log)
	for name, code := range sheets {
		j.rpt.StoreData("in/"+name, []byte(code))
		j.rpt.StoreData("in/"+name+".tree", []byte(p.Parse(code).Dump()))
	}
}

func (j *job) writeChanged(dst string, changed map[string]string) (err error) {
	for _, name := range slices.Sorted(maps.Keys(changed)) {
		target := filepath.Join(dst, filepath.FromSlash(name))
		if werr := writeFile(target, changed[name]); werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		j.rpt.StoreData("out/"+name, []byte(changed[name]))
		j.log.Debug("Stylesheet written", zap.String("file", target))
	}
	return err
}

// injectHTML adds preload links for every recorded font into HTML documents
// found under dir, results are written under dst.
func (j *job) injectHTML(ctx context.Context, dir, dst string) error {
	preloads := j.tr.Preloads()
	var urls []string
	for _, id := range preloads.IDs() {
		for _, u := range preloads.Get(id) {
			if !slices.Contains(urls, u) {
				urls = append(urls, u)
			}
		}
	}
	if len(urls) == 0 {
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := transform.InjectPreloadLinks(string(data), urls)
		if err != nil {
			j.log.Warn("Unable to inject preload links", zap.String("file", path), zap.Error(err))
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		j.log.Debug("Preload links injected", zap.String("file", path), zap.Int("links", len(urls)))
		return writeFile(filepath.Join(dst, rel), doc)
	})
}

// finish downloads proxied fonts and updates bundler manifest if requested.
func (j *job) finish(ctx context.Context) error {
	if len(j.opts.Download) > 0 && j.proxy != nil {
		if err := j.proxy.Download(ctx, j.opts.Download); err != nil {
			return fmt.Errorf("unable to download fonts: %w", err)
		}
		j.log.Info("Fonts downloaded", zap.String("dir", j.opts.Download), zap.Int("files", len(j.proxy.Files())))
	}
	if len(j.opts.Manifest) > 0 {
		if err := j.updateManifest(); err != nil {
			return fmt.Errorf("unable to update manifest: %w", err)
		}
	}
	return nil
}

func (j *job) updateManifest() error {
	data, err := os.ReadFile(j.opts.Manifest)
	if err != nil {
		return err
	}
	m, err := transform.ParseManifest(data)
	if err != nil {
		return err
	}
	j.tr.Preloads().AddPreloadLinks(m, transform.ManifestOptions{
		BuildAssetsDir: j.opts.BuildAssetsDir,
		Entry:          j.opts.Entry,
	})
	if data, err = m.JSON(); err != nil {
		return err
	}
	j.rpt.StoreData("out/"+config.CleanFileName(filepath.Base(j.opts.Manifest)), data)
	return writeFile(j.opts.Manifest, string(data))
}

func writeFile(name, content string) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(name, []byte(content), 0644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", name, err)
	}
	return nil
}

// output returns stream results are printed to.
func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// Package batch synthesizes declarations for many documents concurrently.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mcncl/pytyper/internal/analyzer"
	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/formatter"
	"github.com/mcncl/pytyper/internal/generator"
	"github.com/mcncl/pytyper/internal/models"
	"github.com/mcncl/pytyper/internal/naming"
	"github.com/mcncl/pytyper/internal/parser"
	"github.com/mcncl/pytyper/internal/query"
)

// DefaultWorkers is used when Config.Workers is not positive.
const DefaultWorkers = 4

// Job is one document to synthesize. Data takes precedence over Path;
// Path is still used for format detection and the default root name.
type Job struct {
	Path     string
	Data     []byte
	RootName string
	Format   parser.Format
}

// Result is the outcome of one job. Err is set when the job failed; other
// jobs are unaffected.
type Result struct {
	Job      Job
	RootName string
	Output   string
	Cached   bool
	Err      error
}

// Config controls a Runner.
type Config struct {
	Workers int
	// CacheSize is the number of rendered modules kept. Zero disables
	// caching.
	CacheSize int
	Module    generator.ModuleOptions
	// Formatter, when set, lays out each module.
	Formatter *formatter.Formatter
	// Select is a jq expression applied to each document before inference.
	Select string
}

// Runner processes jobs with a bounded worker pool.
type Runner struct {
	gen      *generator.Generator
	cfg      Config
	selector *query.Selector
	cache    *lru.Cache[string, string]
}

// NewRunner creates a runner rendering with g.
func NewRunner(g *generator.Generator, cfg Config) (*Runner, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	r := &Runner{gen: g, cfg: cfg}

	if cfg.Select != "" {
		selector, err := query.Compile(cfg.Select)
		if err != nil {
			return nil, err
		}
		r.selector = selector
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Run processes jobs concurrently. Results are in job order. The returned
// error is only set when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.Process(job)
			if results[i].Err != nil {
				slog.Warn("batch job failed", "path", job.Path, "error", results[i].Err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Process runs a single job synchronously.
func (r *Runner) Process(job Job) Result {
	result := Result{Job: job, RootName: job.RootName}
	if result.RootName == "" {
		result.RootName = naming.RootNameFromPath(job.Path, analyzer.DefaultRootName)
	}

	data := job.Data
	if data == nil {
		content, err := os.ReadFile(job.Path)
		if err != nil {
			if os.IsNotExist(err) {
				err = errors.ErrFileNotFound
			}
			result.Err = errors.NewInputError(fmt.Sprintf("failed to read '%s'", job.Path), err)
			return result
		}
		data = content
	}

	format := parser.DetectFormat(job.Path, job.Format)
	key := r.cacheKey(data, result.RootName, format)
	if r.cache != nil {
		if output, ok := r.cache.Get(key); ok {
			result.Output = output
			result.Cached = true
			return result
		}
	}

	output, err := r.render(data, result.RootName, format)
	if err != nil {
		result.Err = err
		return result
	}
	if r.cache != nil {
		r.cache.Add(key, output)
	}
	result.Output = output
	return result
}

func (r *Runner) render(data []byte, rootName string, format parser.Format) (string, error) {
	ir, err := parser.ParseBytes(data, format)
	if err != nil {
		return "", err
	}

	root := ir.Root
	if r.selector != nil {
		root, err = r.selector.Apply(root)
		if err != nil {
			return "", err
		}
	}
	if _, ok := root.(*models.JSONObject); !ok {
		return "", errors.NewValidationError("document root must be a JSON object", errors.ErrNotAnObject)
	}

	s, err := r.gen.Declarations(rootName, root)
	if err != nil {
		return "", errors.NewGenerateError("failed to generate declarations", err)
	}

	module := generator.WriteModule(s, r.cfg.Module)
	if r.cfg.Formatter == nil {
		return module, nil
	}
	formatted, err := r.cfg.Formatter.Format(module)
	if err != nil {
		return "", errors.NewFormatError("failed to format output", err)
	}
	return formatted, nil
}

// cacheKey identifies everything that influences the rendered module.
func (r *Runner) cacheKey(data []byte, rootName string, format parser.Format) string {
	h := sha256.New()
	h.Write(data)
	for _, part := range []string{
		rootName,
		string(format),
		r.gen.Notation().Name(),
		r.cfg.Select,
		r.cfg.Module.Header,
		strconv.FormatBool(r.cfg.Module.EmitImports),
		r.cfg.Module.TypedDictModule,
		strconv.FormatBool(r.cfg.Formatter != nil),
	} {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

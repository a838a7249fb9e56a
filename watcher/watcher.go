package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dvf-analyzer/models"
	"dvf-analyzer/services"
	"dvf-analyzer/storage"
	"dvf-analyzer/utils"
)

// DefaultSettle is how long a file must stay untouched before it is analyzed.
const DefaultSettle = 300 * time.Millisecond

// Options configure a Watcher.
type Options struct {
	InboxDir  string
	OutputDir string
	Workers   int
	Settle    time.Duration
	// Request is the template applied to every file. PostalCode is taken
	// from the file name when it starts with five digits.
	Request models.AnalysisRequest
	// OnReport, when set, is called after every processed file.
	OnReport func(input, report string, err error)
}

// Watcher analyzes CSV exports dropped into an inbox directory and writes an
// XLSX report for each of them.
type Watcher struct {
	opts     Options
	analyzer *services.Analyzer
	exporter *storage.XLSXWriter
	logger   *utils.Logger
	pool     *utils.Pool
	seen     *utils.KeySet

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	// timers counts settle callbacks that are armed or running.
	timers sync.WaitGroup
}

// New creates a Watcher.
func New(opts Options, analyzer *services.Analyzer, exporter *storage.XLSXWriter, logger *utils.Logger) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	return &Watcher{
		opts:     opts,
		analyzer: analyzer,
		exporter: exporter,
		logger:   logger,
		pool:     utils.NewPool(opts.Workers),
		seen:     utils.NewKeySet(),
		pending:  make(map[string]*time.Timer),
	}
}

// Run processes the files already in the inbox, then watches it until ctx
// ends. It waits for in-flight reports before returning.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.InboxDir, 0755); err != nil {
		return fmt.Errorf("watcher: create inbox: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.opts.InboxDir); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", w.opts.InboxDir, err)
	}
	w.logger.Info("[watcher] watching %s for CSV exports", w.opts.InboxDir)

	if err := w.Backfill(ctx); err != nil {
		return err
	}

	defer func() {
		w.stopTimers()
		w.pool.Wait()
		w.logger.Info("[watcher] stopped, %d file versions processed", w.seen.Size())
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 && isCSV(evt.Name) {
				w.schedule(ctx, evt.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("[watcher] watch error: %v", err)
		}
	}
}

// Backfill submits the CSV files already present in the inbox.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(w.opts.InboxDir, "*"))
	if err != nil {
		return fmt.Errorf("watcher: list inbox: %w", err)
	}
	for _, e := range entries {
		if isCSV(e) {
			w.submit(ctx, e)
		}
	}
	return nil
}

// schedule delays processing until the file stops changing.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.opts.Settle)
		return
	}

	var t *time.Timer
	w.timers.Add(1)
	t = time.AfterFunc(w.opts.Settle, func() {
		defer w.timers.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.submit(ctx, path)
		}
	})
	w.pending[path] = t
}

// stopTimers cancels pending settle callbacks and waits for the ones
// already running, so no submit can race with the pool draining.
func (w *Watcher) stopTimers() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		if t.Stop() {
			w.timers.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.timers.Wait()
}

// submit hands path to the pool unless this exact version was done already.
func (w *Watcher) submit(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	key := fmt.Sprintf("%s@%d:%d", path, info.ModTime().UnixNano(), info.Size())
	if !w.seen.Add(key) {
		return
	}

	if err := w.pool.Submit(ctx, func() {
		report, err := w.ProcessFile(ctx, path)
		if err != nil {
			w.logger.Error("[watcher] %s: %v", filepath.Base(path), err)
			w.seen.Remove(key)
		}
		if w.opts.OnReport != nil {
			w.opts.OnReport(path, report, err)
		}
	}); err != nil {
		w.seen.Remove(key)
	}
}

// ProcessFile analyzes one CSV export and returns the report path.
func (w *Watcher) ProcessFile(ctx context.Context, path string) (string, error) {
	req := w.opts.Request
	if req.MaxResults == 0 {
		req.MaxResults = services.DefaultMaxResults
	}
	postal := PostalCodeFromName(path)

	set, err := storage.NewCSVSource(path, w.logger).Fetch(ctx, postal)
	if err != nil {
		return "", err
	}

	res := w.analyzer.Run(set.Transactions, set.Request(req))
	if res.OK() {
		w.logger.Info("[watcher] %s: %d transactions analyzed, mean %.2f €/m²",
			filepath.Base(path), res.Summary.Analyzed, res.Statistics.PricePerArea.Mean)
	} else {
		w.logger.Warn("[watcher] %s: no data (%s)", filepath.Base(path), res.Reason.Code)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	report := filepath.Join(w.opts.OutputDir, base+".xlsx")
	if err := w.exporter.WriteReport(report, res); err != nil {
		return "", err
	}
	return report, nil
}

// PostalCodeFromName returns the leading five digits of a file name, or "".
func PostalCodeFromName(path string) string {
	base := filepath.Base(path)
	if len(base) < 5 {
		return ""
	}
	for _, c := range base[:5] {
		if c < '0' || c > '9' {
			return ""
		}
	}
	if len(base) > 5 && base[5] >= '0' && base[5] <= '9' {
		return ""
	}
	return base[:5]
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

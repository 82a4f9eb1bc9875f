package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cinedata/filmset-cli/internal/model"
	"github.com/cinedata/filmset-cli/internal/resilience"
	"github.com/cinedata/filmset-cli/pkg/mediawiki"
	"github.com/cinedata/filmset-cli/pkg/wikidata"
)

// ErrSystemic marks a sustained-unavailability condition: too many consecutive
// items exhausted their retries. The stage returns its partial output alongside
// it so the driver can persist what was collected before halting the group.
var ErrSystemic = eris.New("systemic API failure")

// Stages holds the pure stage functions of the pipeline. Stages never touch
// checkpoint storage; they transform upstream data into output data plus
// per-item failures, using live API calls.
type Stages struct {
	mw mediawiki.Client
	wd wikidata.Client

	metadataBatch      int
	summaryConcurrency int
	fatalAfter         int
}

// NewStages wires the stage functions to their API clients.
func NewStages(mw mediawiki.Client, wd wikidata.Client, metadataBatch, summaryConcurrency, fatalAfter int) *Stages {
	if metadataBatch <= 0 {
		metadataBatch = 200
	}
	if summaryConcurrency <= 0 {
		summaryConcurrency = 8
	}
	if fatalAfter <= 0 {
		fatalAfter = 5
	}
	return &Stages{
		mw:                 mw,
		wd:                 wd,
		metadataBatch:      metadataBatch,
		summaryConcurrency: summaryConcurrency,
		fatalAfter:         fatalAfter,
	}
}

// fatalCounter trips after a run of consecutive transient-exhaustion failures.
type fatalCounter struct {
	limit       int
	consecutive int
}

// observe records one item outcome and reports whether the systemic
// threshold has been reached. Permanent absences reset nothing; they are
// answers, not failures.
func (f *fatalCounter) observe(err error) bool {
	if err == nil || resilience.IsNotFound(err) {
		f.consecutive = 0
		return false
	}
	f.consecutive++
	return f.consecutive >= f.limit
}

// Subcats discovers the subcategories of a group. A group is a single API
// listing, so a failure here is fatal for the group rather than per-item.
func (s *Stages) Subcats(ctx context.Context, group string) ([]string, []model.ItemFailure, error) {
	subcats, err := s.mw.CategoryMembers(ctx, group, mediawiki.MemberSubcategory)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "stage subcats: group %q", group)
	}
	return subcats, nil, nil
}

// Films lists the film titles of a group: the group's own pages plus the
// pages of every discovered subcategory, deduplicated. A title appearing
// under several subcategories counts once.
func (s *Stages) Films(ctx context.Context, group string, subcats []string) ([]string, []model.ItemFailure, error) {
	log := zap.L().With(zap.String("stage", "films"), zap.String("group", group))

	categories := make([]string, 0, len(subcats)+1)
	categories = append(categories, group)
	for _, sc := range subcats {
		categories = append(categories, stripCategoryPrefix(sc))
	}

	seen := make(map[string]bool)
	var failures []model.ItemFailure
	fatal := fatalCounter{limit: s.fatalAfter}

	for _, cat := range categories {
		pages, err := s.mw.CategoryMembers(ctx, cat, mediawiki.MemberPage)
		if fatal.observe(err) {
			return sortedKeys(seen), failures, eris.Wrapf(ErrSystemic, "stage films: after category %q", cat)
		}
		if err != nil {
			failures = append(failures, model.ItemFailure{Title: cat, Reason: err.Error()})
			log.Warn("category listing failed", zap.String("category", cat), zap.Error(err))
			continue
		}
		for _, p := range pages {
			seen[p] = true
		}
	}

	return sortedKeys(seen), failures, nil
}

// QIDs resolves each film title to a Wikidata entity. Titles the knowledge
// graph has no entity for are recorded as explicit non-matches (empty Q-ID),
// not omitted, so a reloaded checkpoint can tell "no answer" from "never asked".
func (s *Stages) QIDs(ctx context.Context, titles []string) (map[string]string, []model.ItemFailure, error) {
	log := zap.L().With(zap.String("stage", "qids"))

	sorted := append([]string(nil), titles...)
	sort.Strings(sorted)

	qids := make(map[string]string, len(sorted))
	var failures []model.ItemFailure
	fatal := fatalCounter{limit: s.fatalAfter}

	const batchSize = 50
	for start := 0; start < len(sorted); start += batchSize {
		batch := sorted[start:min(start+batchSize, len(sorted))]

		resolved, err := s.mw.ResolveQIDs(ctx, batch)
		if err == nil {
			fatal.observe(nil)
			for _, t := range batch {
				qids[t] = resolved[t] // "" when the title has no entity
			}
			continue
		}

		// A batch can fail because of a single title; retry its members one
		// at a time so the rest of the batch is unaffected.
		log.Warn("batch resolution failed, isolating titles", zap.Int("batch_size", len(batch)), zap.Error(err))
		for _, t := range batch {
			single, err := s.mw.ResolveQIDs(ctx, []string{t})
			if fatal.observe(err) {
				return qids, failures, eris.Wrap(ErrSystemic, "stage qids")
			}
			if err != nil {
				failures = append(failures, model.ItemFailure{Title: t, Reason: err.Error()})
				continue
			}
			qids[t] = single[t]
		}
	}

	return qids, failures, nil
}

// Metadata fetches Wikidata properties for every resolved entity. Titles with
// no resolved entity are skipped, not failed; their records simply stay
// without these fields.
func (s *Stages) Metadata(ctx context.Context, qids map[string]string) (map[string]model.FilmMeta, []model.ItemFailure, error) {
	log := zap.L().With(zap.String("stage", "metadata"))

	// Reverse index: several titles can share an entity.
	titlesByQID := make(map[string][]string)
	var ids []string
	for title, qid := range qids {
		if qid == "" {
			continue
		}
		if _, ok := titlesByQID[qid]; !ok {
			ids = append(ids, qid)
		}
		titlesByQID[qid] = append(titlesByQID[qid], title)
	}
	sort.Strings(ids)

	meta := make(map[string]model.FilmMeta)
	var failures []model.ItemFailure
	fatal := fatalCounter{limit: s.fatalAfter}

	assign := func(resolved map[string]model.FilmMeta) {
		for qid, m := range resolved {
			for _, t := range titlesByQID[qid] {
				meta[t] = m
			}
		}
	}

	for start := 0; start < len(ids); start += s.metadataBatch {
		batch := ids[start:min(start+s.metadataBatch, len(ids))]

		resolved, err := s.wd.FilmMetadata(ctx, batch)
		if err == nil {
			fatal.observe(nil)
			assign(resolved)
			continue
		}

		// Same isolation as qids: retry the batch one entity at a time.
		log.Warn("metadata batch failed, isolating entities", zap.Int("batch_size", len(batch)), zap.Error(err))
		for _, qid := range batch {
			single, err := s.wd.FilmMetadata(ctx, []string{qid})
			if fatal.observe(err) {
				return meta, failures, eris.Wrap(ErrSystemic, "stage metadata")
			}
			if err != nil {
				for _, t := range titlesByQID[qid] {
					failures = append(failures, model.ItemFailure{Title: t, Reason: err.Error()})
				}
				continue
			}
			assign(single)
		}
	}

	return meta, failures, nil
}

// Summaries fetches page summaries per title, directly from the title-indexed
// REST source, independent of entity resolution. Requests run concurrently
// under a bounded limit; each still passes the shared rate gate inside the
// client. Missing pages are recorded as empty summaries.
func (s *Stages) Summaries(ctx context.Context, titles []string) (map[string]string, []model.ItemFailure, error) {
	summaries := make(map[string]string, len(titles))
	var failures []model.ItemFailure
	fatal := fatalCounter{limit: s.fatalAfter}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.summaryConcurrency)

	sorted := append([]string(nil), titles...)
	sort.Strings(sorted)

	for _, title := range sorted {
		g.Go(func() error {
			summary, err := s.mw.Summary(gctx, title)

			mu.Lock()
			defer mu.Unlock()

			tripped := fatal.observe(err)
			switch {
			case err == nil:
				summaries[title] = summary
			case resilience.IsNotFound(err):
				summaries[title] = ""
			default:
				failures = append(failures, model.ItemFailure{Title: title, Reason: err.Error()})
			}
			if tripped {
				return eris.Wrap(ErrSystemic, "stage summaries")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summaries, failures, err
	}
	return summaries, failures, nil
}

// Assemble merges the per-title partial maps into complete records. A title
// present in only one map still produces a record; the missing fields stay
// zero. No API calls are made.
func (s *Stages) Assemble(qids map[string]string, meta map[string]model.FilmMeta, summaries map[string]string) []model.FilmRecord {
	titles := make(map[string]bool)
	for t := range qids {
		titles[t] = true
	}
	for t := range meta {
		titles[t] = true
	}
	for t := range summaries {
		titles[t] = true
	}

	records := make([]model.FilmRecord, 0, len(titles))
	for _, title := range sortedKeys(titles) {
		m := meta[title]
		records = append(records, model.FilmRecord{
			Title:   title,
			IMDBID:  m.IMDBID,
			Year:    m.Year,
			Summary: summaries[title],
			People:  m.People,
		})
	}
	return records
}

func stripCategoryPrefix(title string) string {
	return strings.TrimPrefix(title, "Category:")
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package dedup

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"job-dedup-go/internal/blocking"
	"job-dedup-go/internal/models"
	"job-dedup-go/internal/quality"
	"job-dedup-go/internal/similarity"
)

// Detector finds duplicate postings within company blocks and picks the
// canonical side of every pair by quality score.
type Detector struct {
	opts   Options
	scorer *quality.Scorer
	logger *zap.Logger
}

// Detection is the outcome of one detection pass. It is a pure function of
// the input jobs and the options.
type Detection struct {
	// Jobs are the accepted records in input order.
	Jobs          []models.JobRecord                `json:"-"`
	Relationships []models.DuplicateRelationship    `json:"relationships"`
	Quality       map[string]models.QualityMetadata `json:"quality"`
	// CanonicalIDs lists accepted jobs never on the duplicate side, sorted.
	CanonicalIDs []string      `json:"canonical_ids"`
	Skipped      []*InputError `json:"skipped,omitempty"`
	Blocks       int           `json:"blocks"`
	Comparisons  int           `json:"comparisons"`
}

// prepared caches per-job values that every comparison needs.
type prepared struct {
	job         models.JobRecord
	url         string
	description string
	quality     models.QualityMetadata
}

// NewDetector validates opts and returns a Detector.
func NewDetector(opts Options, scorer *quality.Scorer, logger *zap.Logger) (*Detector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		scorer = quality.NewScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{opts: opts, scorer: scorer, logger: logger}, nil
}

// Options returns the configuration the detector was built with.
func (d *Detector) Options() Options {
	return d.opts
}

// Detect runs blocking, pairwise comparison, thresholding and canonical
// selection. Cancellation is checked between blocks.
func (d *Detector) Detect(ctx context.Context, jobs []models.JobRecord) (*Detection, error) {
	accepted, skipped := d.acceptJobs(jobs)

	items := make([]prepared, len(accepted))
	qualities := make(map[string]models.QualityMetadata, len(accepted))
	for i, job := range accepted {
		q := d.scorer.ScoreJob(job)
		items[i] = prepared{
			job:         job,
			url:         CanonicalURL(job.URL),
			description: similarity.PlainText(job.Description),
			quality:     q,
		}
	}

	blocks := blocking.BuildBlocks(accepted)
	keys := blocks.Keys()
	results := make([][]models.DuplicateRelationship, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, key := range keys {
		if gctx.Err() != nil {
			break
		}
		i, idx := i, blocks[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.compareBlock(items, idx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rels []models.DuplicateRelationship
	for _, r := range results {
		rels = append(rels, r...)
	}

	duplicateSide := make(map[string]bool)
	canonicalCount := make(map[string]int)
	for _, r := range rels {
		duplicateSide[r.DuplicateJobID] = true
		canonicalCount[r.CanonicalJobID]++
	}

	canonicalIDs := make([]string, 0, len(items))
	for _, it := range items {
		q := it.quality
		q.IsCanonical = !duplicateSide[q.JobID]
		q.DuplicateCount = canonicalCount[q.JobID]
		qualities[q.JobID] = q
		if q.IsCanonical {
			canonicalIDs = append(canonicalIDs, q.JobID)
		}
	}
	sort.Strings(canonicalIDs)

	d.logger.Debug("detection finished",
		zap.Int("jobs", len(accepted)),
		zap.Int("skipped", len(skipped)),
		zap.Int("blocks", len(keys)),
		zap.Int("comparisons", blocks.PairCount()),
		zap.Int("relationships", len(rels)),
	)

	return &Detection{
		Jobs:          accepted,
		Relationships: rels,
		Quality:       qualities,
		CanonicalIDs:  canonicalIDs,
		Skipped:       skipped,
		Blocks:        len(keys),
		Comparisons:   blocks.PairCount(),
	}, nil
}

// acceptJobs drops records without an id and repeated ids.
func (d *Detector) acceptJobs(jobs []models.JobRecord) ([]models.JobRecord, []*InputError) {
	accepted := make([]models.JobRecord, 0, len(jobs))
	var skipped []*InputError
	seen := make(map[string]bool, len(jobs))

	for i, job := range jobs {
		id := strings.TrimSpace(job.ID)
		var reason string
		switch {
		case id == "":
			reason = "missing id"
		case seen[id]:
			reason = "duplicate id in input"
		}

		if reason != "" {
			skipped = append(skipped, &InputError{Index: i, JobID: id, Reason: reason})
			d.logger.Warn("skipping job record",
				zap.Int("job_index", i),
				zap.String("job_id", id),
				zap.String("reason", reason),
			)
			continue
		}

		seen[id] = true
		job.ID = id
		accepted = append(accepted, job)
	}

	return accepted, skipped
}

// compareBlock compares every pair of a block in ascending index order.
func (d *Detector) compareBlock(items []prepared, idx []int) []models.DuplicateRelationship {
	var rels []models.DuplicateRelationship
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			if rel, ok := d.comparePair(&items[idx[a]], &items[idx[b]]); ok {
				rels = append(rels, rel)
			}
		}
	}
	return rels
}

func (d *Detector) comparePair(x, y *prepared) (models.DuplicateRelationship, bool) {
	var rel models.DuplicateRelationship

	if sameURL(x.url, y.url) {
		rel.OverallSimilarity = 100
		rel.DetectionMethod = models.MethodURLMatch
	} else {
		scores := similarity.FieldScores{
			Title:       similarity.Hybrid(x.job.Title, y.job.Title),
			Company:     similarity.Hybrid(x.job.Company, y.job.Company),
			Location:    similarity.Hybrid(x.job.Location, y.job.Location),
			Description: similarity.DescriptionSimilarity(x.description, y.description),
		}
		rel.TitleSimilarity = scores.Title
		rel.CompanySimilarity = scores.Company
		rel.LocationSimilarity = scores.Location
		rel.DescriptionSimilarity = scores.Description
		rel.OverallSimilarity = d.opts.Weights.Combine(scores)
		rel.DetectionMethod = models.MethodFuzzyMatch
	}

	rel.ConfidenceLevel = d.opts.Thresholds.Classify(rel.OverallSimilarity)
	if rel.ConfidenceLevel == models.ConfidenceNone {
		return rel, false
	}

	canonical, duplicate := x, y
	if better(y, x) {
		canonical, duplicate = y, x
	}
	rel.CanonicalJobID = canonical.job.ID
	rel.DuplicateJobID = duplicate.job.ID

	return rel, true
}

// better orders jobs by quality, then earlier creation, then smaller id.
// A missing creation time sorts after any known one.
func better(a, b *prepared) bool {
	qa, qb := a.quality.OverallQualityScore, b.quality.OverallQualityScore
	if qa != qb {
		return qa > qb
	}

	ta, tb := a.job.CreatedAt, b.job.CreatedAt
	if ta.IsZero() != tb.IsZero() {
		return !ta.IsZero()
	}
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}

	return a.job.ID < b.job.ID
}

package severity

import "github.com/inodb/vibe-severity/internal/rates"

// Bucket assigns Weight to scores in [Lo, Hi).
type Bucket struct {
	Lo, Hi float64
	Weight float64
}

// Weights scales raw severity scores. Truncating variants get a fixed
// multiplier; missense variants get a score-bucketed multiplier that depends
// on whether the site lies in a constrained region.
type Weights struct {
	Truncating    float64
	Constrained   []Bucket
	Unconstrained []Bucket
}

// DefaultWeights returns the multipliers derived from missense and
// truncating enrichment in known dominant developmental disorder genes.
func DefaultWeights() *Weights {
	return &Weights{
		Truncating: 30.4986359738963,
		Unconstrained: []Bucket{
			{0, 5, 0.89378999169559},
			{5, 10, 2.45095807132636},
			{10, 15, 1.23783036756664},
			{15, 20, 1.04908176145445},
			{20, 25, 2.13085809157198},
			{25, 30, 4.97619976726511},
			{30, 35, 6.73650544131241},
			{35, 40, 5.68752647734537},
			{40, 1000, 5.68752647734537},
		},
		Constrained: []Bucket{
			{0, 5, 0.0},
			{5, 10, 4.05516581596172},
			{10, 15, 2.75708159237827},
			{15, 20, 4.81275329358394},
			{20, 25, 7.41041424690547},
			{25, 30, 16.5358474569603},
			{30, 35, 19.0139355018205},
			{35, 40, 35.7654385873813},
			{40, 1000, 35.7654385873813},
		},
	}
}

// IsTruncating reports whether a category is weighted as protein-truncating.
func IsTruncating(cat rates.Category) bool {
	return cat == rates.Nonsense || cat == rates.SpliceLoF
}

// Apply returns the weighted severity of a site. A nil receiver leaves the
// score unchanged, as do categories that are neither truncating nor missense.
// A nil regions treats every site as unconstrained.
func (w *Weights) Apply(cat rates.Category, pos int64, score float64, regions ConstraintRegions) float64 {
	if w == nil {
		return score
	}
	switch {
	case IsTruncating(cat):
		return score * w.Truncating
	case cat == rates.Missense:
		buckets := w.Unconstrained
		if regions != nil && regions.Constrained(pos) {
			buckets = w.Constrained
		}
		return score * bucketWeight(buckets, score)
	default:
		return score
	}
}

// bucketWeight finds the bucket containing score. Scores below the first
// bucket use its weight, and scores at or past the last bound use the last.
func bucketWeight(buckets []Bucket, score float64) float64 {
	if len(buckets) == 0 {
		return 1
	}
	if score < buckets[0].Lo {
		return buckets[0].Weight
	}
	for _, b := range buckets {
		if score >= b.Lo && score < b.Hi {
			return b.Weight
		}
	}
	return buckets[len(buckets)-1].Weight
}

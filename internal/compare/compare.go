// Package compare implements the statistical comparator (C11): a paired
// t-test per rubric between a baseline and a candidate evaluation run,
// reduced to an adopt/reject/inconclusive decision.
//
// This package uses only the math stdlib. No repo in the reference
// corpus imports a statistics library (gonum or otherwise), so rather
// than fabricate a dependency this computes the paired t-test and
// Cohen's d directly — the formulas are small and fixed, and stdlib
// math is genuinely sufficient here.
package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/CuriosityQuantified/tandemai/internal/judge"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// significanceLevel is the p-value threshold below which a rubric's
// paired difference is considered significant, per spec.md §4.11.
const significanceLevel = 0.05

// Build compares two sets of evaluation results, indexed by query_id,
// over the same universe of queries, and returns a ComparisonReport.
func Build(baselineRun, candidateRun string, baseline, candidate []types.EvaluationResult) (types.ComparisonReport, error) {
	baseByQuery, err := indexByQuery(baseline)
	if err != nil {
		return types.ComparisonReport{}, fmt.Errorf("compare: baseline: %w", err)
	}
	candByQuery, err := indexByQuery(candidate)
	if err != nil {
		return types.ComparisonReport{}, fmt.Errorf("compare: candidate: %w", err)
	}
	if len(baseByQuery) != len(candByQuery) {
		return types.ComparisonReport{}, fmt.Errorf("compare: baseline has %d queries, candidate has %d", len(baseByQuery), len(candByQuery))
	}

	queryIDs := make([]string, 0, len(baseByQuery))
	for id, candResult := range candByQuery {
		if _, ok := baseByQuery[id]; !ok {
			return types.ComparisonReport{}, fmt.Errorf("compare: query %q present in candidate but not baseline", id)
		}
		_ = candResult
		queryIDs = append(queryIDs, id)
	}
	sort.Strings(queryIDs)

	report := types.ComparisonReport{
		BaselineRun:  baselineRun,
		CandidateRun: candidateRun,
	}

	improved, regressed := 0, 0
	for _, rubric := range judge.Rubrics {
		rc, err := compareRubric(rubric.Key, queryIDs, baseByQuery, candByQuery)
		if err != nil {
			return types.ComparisonReport{}, fmt.Errorf("compare: rubric %q: %w", rubric.Key, err)
		}
		report.Rubrics = append(report.Rubrics, rc)
		if rc.Improved {
			improved++
		}
		if rc.Regressed {
			regressed++
		}
	}

	report.Decision = decide(improved, regressed)
	return report, nil
}

func indexByQuery(results []types.EvaluationResult) (map[string]types.EvaluationResult, error) {
	out := make(map[string]types.EvaluationResult, len(results))
	for _, r := range results {
		if !r.Valid() {
			return nil, fmt.Errorf("result for query %q was never sealed by aggregate.Build", r.QueryID)
		}
		if _, dup := out[r.QueryID]; dup {
			return nil, fmt.Errorf("duplicate result for query %q", r.QueryID)
		}
		out[r.QueryID] = r
	}
	return out, nil
}

// compareRubric runs the paired t-test for a single rubric across every
// query both runs share, a rubric "improved" if its mean difference is
// positive and significant, "regressed" if negative and significant.
func compareRubric(rubricKey string, queryIDs []string, base, cand map[string]types.EvaluationResult) (types.RubricComparison, error) {
	diffs := make([]float64, 0, len(queryIDs))
	for _, id := range queryIDs {
		bDecision, ok := base[id].Scores[rubricKey]
		if !ok {
			return types.RubricComparison{}, fmt.Errorf("baseline query %q missing rubric", id)
		}
		cDecision, ok := cand[id].Scores[rubricKey]
		if !ok {
			return types.RubricComparison{}, fmt.Errorf("candidate query %q missing rubric", id)
		}
		diffs = append(diffs, cDecision.Score-bDecision.Score)
	}

	n := len(diffs)
	meanDiff := mean(diffs)
	sd := stddev(diffs, meanDiff)

	var cohensD, pValue float64
	significant := false
	if sd > 0 && n > 1 {
		cohensD = meanDiff / sd
		tStat := meanDiff / (sd / math.Sqrt(float64(n)))
		pValue = twoSidedPValue(tStat, n-1)
		significant = pValue < significanceLevel
	}

	return types.RubricComparison{
		RubricKey:      rubricKey,
		N:              n,
		MeanDifference: meanDiff,
		CohensD:        cohensD,
		PValue:         pValue,
		Significant:    significant,
		Improved:       significant && meanDiff > 0,
		Regressed:      significant && meanDiff < 0,
	}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the Bessel-corrected (sample) standard deviation.
func stddev(xs []float64, meanVal float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - meanVal
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// twoSidedPValue computes the two-sided p-value for a t-statistic with
// the given degrees of freedom via the regularized incomplete beta
// function, the standard closed form for the Student's t CDF.
func twoSidedPValue(t float64, df int) float64 {
	if df <= 0 {
		return 1
	}
	x := float64(df) / (float64(df) + t*t)
	p := incompleteBeta(x, float64(df)/2, 0.5)
	return p
}

// incompleteBeta approximates the regularized incomplete beta function
// I_x(a, b) via a continued fraction expansion (Numerical Recipes'
// betacf), the standard numerical approach absent a stats library.
func incompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lnBeta := lgamma(a+b) - lgamma(a) - lgamma(b) + a*math.Log(x) + b*math.Log(1-x)
	front := math.Exp(lnBeta)

	if x < (a+1)/(a+b+2) {
		return front * betacf(x, a, b) / a
	}
	return 1 - front*betacf(1-x, b, a)/b
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// betacf is the continued-fraction evaluation used by incompleteBeta.
func betacf(x, a, b float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		fpmin   = 1e-300
	)
	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < fpmin {
		d = fpmin
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		mf := float64(m)
		m2 := 2 * mf

		aa := mf * (b - mf) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		h *= d * c

		aa = -(a + mf) * (qab + mf) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

// decide applies spec.md §4.11's decision table.
func decide(improved, regressed int) types.ComparisonDecision {
	switch {
	case improved >= 3 && regressed == 0:
		return types.DecisionAdopt
	case improved >= 1 && improved <= 2 && regressed == 0:
		return types.DecisionAdopt
	case regressed >= 1:
		return types.DecisionReject
	default:
		return types.DecisionInconclusive
	}
}

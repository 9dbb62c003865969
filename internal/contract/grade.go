package contract

// Severity weights used to derive a compliance score from identified
// gaps. Calibrated so filings with minor gaps land in the B/C range
// while documents with material deficiencies land in D/F.
var severityWeights = map[Severity]int{
	SeverityCritical: 15,
	SeverityHigh:     8,
	SeverityMedium:   3,
}

// ScoreFromGaps derives the compliance score: 100 minus the summed
// severity penalties, floored at 0. Unrecognized severities weigh as
// medium.
func ScoreFromGaps(gaps []Gap) int {
	penalty := 0
	for _, g := range gaps {
		w, ok := severityWeights[g.Severity]
		if !ok {
			w = severityWeights[SeverityMedium]
		}
		penalty += w
	}
	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	return score
}

// GradeForScore maps a score to its letter grade. Bands are contiguous
// and inclusive on their lower bound: >=90 A, 80-89 B, 70-79 C,
// 60-69 D, <60 F.
func GradeForScore(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

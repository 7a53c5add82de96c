package stats

import "math"

// Model selects the LLR parameterization. The source this is distilled
// from carries two distinct LLR formulations (trinomial vs pentanomial
// parameterization) that disagree on edge cases -- per spec.md §9 we do not
// attempt to reconcile them, we just keep all three behind the Model enum
// and document the math each one does.
type Model string

const (
	Normalized Model = "normalized"
	BayesElo   Model = "bayeselo"
	Logistic   Model = "logistic"
)

// Decision is the outcome of comparing LLR against the SPRT bounds.
type Decision int

const (
	Continue Decision = iota
	AcceptH0          // reject the patch
	AcceptH1          // accept the patch
)

func (d Decision) String() string {
	switch d {
	case AcceptH0:
		return "H0"
	case AcceptH1:
		return "H1"
	default:
		return "continue"
	}
}

// Sprt holds the immutable test parameters and derived bounds.
type Sprt struct {
	Alpha, Beta float64
	Elo0, Elo1  float64
	Model       Model

	Lower, Upper float64 // derived bounds
}

// New computes the derived lower/upper LLR bounds per spec.md §3.
func New(alpha, beta, elo0, elo1 float64, model Model) *Sprt {
	return &Sprt{
		Alpha: alpha, Beta: beta, Elo0: elo0, Elo1: elo1, Model: model,
		Lower: math.Log(beta / (1 - alpha)),
		Upper: math.Log((1 - beta) / alpha),
	}
}

// Decide evaluates the decision rule against a computed LLR.
func (s *Sprt) Decide(llr float64) Decision {
	switch {
	case llr <= s.Lower:
		return AcceptH0
	case llr >= s.Upper:
		return AcceptH1
	default:
		return Continue
	}
}

// LLR computes the log-likelihood ratio for s, from either the trinomial
// or the pentanomial counts in st, depending on usePenta. Per spec.md §9's
// resolved open question, callers must not pass partial (one-half-complete)
// pentanomial pairs -- the tournament scheduler enforces that upstream.
func (s *Sprt) LLR(st Stats, usePenta bool) float64 {
	if usePenta {
		counts := []uint64{st.LL, st.LD, st.WLorDD, st.WD, st.WW}
		scores := []float64{0, 0.25, 0.5, 0.75, 1}
		return s.llrCategorical(counts, scores)
	}
	counts := []uint64{st.Losses, st.Draws, st.Wins}
	scores := []float64{0, 0.5, 1}
	return s.llrCategorical(counts, scores)
}

// eloToScore converts an Elo difference to an expected score via the
// standard logistic model.
func eloToScore(elo float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -elo/400))
}

// ScoreToElo is eloToScore's inverse, guarded against the 0/1 boundary. It
// is used by callers (e.g. interval reporting) to print an Elo estimate
// alongside the raw LLR.
func ScoreToElo(score float64) float64 {
	score = clamp(score, 1e-9, 1-1e-9)
	return 400 * math.Log10(score/(1-score))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// llrCategorical dispatches to the model-specific formula. All three share
// the shape "n * ((mu-mu0)^2 - (mu-mu1)^2) / (2*variance)" from spec.md
// §4.6, differing in how mu (the observed score) and variance are computed
// from the category counts; BayesElo also takes n as the number of
// decisive games only.
func (s *Sprt) llrCategorical(counts []uint64, scores []float64) float64 {
	var n uint64
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	nf := float64(n)

	mu := 0.0
	for i, c := range counts {
		mu += float64(c) * scores[i]
	}
	mu /= nf

	mu0 := eloToScore(s.Elo0)
	mu1 := eloToScore(s.Elo1)

	switch s.Model {
	case BayesElo:
		return s.llrBayesElo(counts, scores, mu, nf)
	case Logistic:
		variance := mu * (1 - mu) // Bernoulli approximation: each game ~ Bernoulli(mu)
		if variance <= 0 {
			return 0
		}
		return nf * ((mu-mu0)*(mu-mu0) - (mu-mu1)*(mu-mu1)) / (2 * variance)
	default: // Normalized
		variance := 0.0
		for i, c := range counts {
			d := scores[i] - mu
			variance += float64(c) * d * d
		}
		variance /= nf
		if variance <= 0 {
			return 0
		}
		return nf * ((mu-mu0)*(mu-mu0) - (mu-mu1)*(mu-mu1)) / (2 * variance)
	}
}

// llrBayesElo restricts the comparison to decisive games (wins/losses),
// the classical BayesElo simplification that draws are not themselves
// elo-informative beyond setting the draw rate.
func (s *Sprt) llrBayesElo(counts []uint64, scores []float64, _ float64, _ float64) float64 {
	var wins, losses float64
	for i, c := range counts {
		switch scores[i] {
		case 1:
			wins += float64(c)
		case 0:
			losses += float64(c)
		}
	}
	decisive := wins + losses
	if decisive == 0 {
		return 0
	}

	p := wins / decisive
	mu0 := eloToScore(s.Elo0)
	mu1 := eloToScore(s.Elo1)
	variance := p * (1 - p)
	if variance <= 0 {
		return 0
	}
	return decisive * ((p-mu0)*(p-mu0) - (p-mu1)*(p-mu1)) / (2 * variance)
}

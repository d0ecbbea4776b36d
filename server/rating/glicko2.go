// Package rating implements the Glicko-2 pairwise rating update used by
// the arena's matchmaking and vote-ingestion flow.
package rating

import (
	"errors"
	"math"
)

// Glicko-2 system constants (paper values, see http://www.glicko.net/glicko/glicko2.pdf).
const (
	scale   = 173.7178 // converts between display scale and Glicko-2 (mu/phi) scale
	tau     = 0.5       // system constant, constrains volatility change
	epsilon = 1e-6       // convergence tolerance for the volatility solver
	maxIter = 100

	// DefaultRating, DefaultRD and DefaultVolatility are the seed values for
	// a freshly created generator.
	DefaultRating     = 1000.0
	DefaultRD         = 350.0
	DefaultVolatility = 0.06

	// MinRD and MaxRD bound rating deviation after every update.
	MinRD = 30.0
	MaxRD = 350.0

	// MinRating and MaxRating bound the display-scale rating after every update.
	MinRating = 100.0
	MaxRating = 3000.0
)

// ErrVolatilityDiverged is returned when the Illinois root finder cannot
// bracket the root or produces a non-finite value. Reaching the iteration
// cap is not an error: the current estimate is returned. The caller should
// treat this error as INTERNAL_ERROR and abort the enclosing transaction.
var ErrVolatilityDiverged = errors.New("rating: volatility solver diverged")

// Result is a pairwise outcome from the perspective of a single side.
type Result int

const (
	// Loss, Tie and Win are the scores S in {0, 0.5, 1} fed to the update.
	Loss Result = iota
	Tie
	Win
)

func (r Result) score() float64 {
	switch r {
	case Win:
		return 1.0
	case Tie:
		return 0.5
	default:
		return 0.0
	}
}

// Rating holds a generator's (rating, rd, sigma) triple on the display scale.
type Rating struct {
	Value      float64
	RD         float64
	Volatility float64
}

// NewRating returns the default seed rating for a freshly created generator.
func NewRating() Rating {
	return Rating{Value: DefaultRating, RD: DefaultRD, Volatility: DefaultVolatility}
}

func (r Rating) toInternal() (mu, phi float64) {
	return (r.Value - DefaultRating) / scale, r.RD / scale
}

func fromInternal(mu, phi, sigma float64) Rating {
	return Rating{
		Value:      clamp(mu*scale+DefaultRating, MinRating, MaxRating),
		RD:         clamp(phi*scale, MinRD, MaxRD),
		Volatility: sigma,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// g reduces the impact of a comparison based on the opponent's uncertainty.
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

// expectedScore returns the probability mu beats muOpp given the opponent's phi.
func expectedScore(mu, muOpp, phiOpp float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phiOpp)*(mu-muOpp)))
}

// ExpectedScore returns the probability that a generator with (rating, rd)
// beats an opponent with (oppRating, oppRD). Used by matchmaking for match
// quality estimation; does not mutate anything.
func ExpectedScore(rating, rd, oppRating, oppRD float64) float64 {
	mu := (rating - DefaultRating) / scale
	muOpp := (oppRating - DefaultRating) / scale
	phiOpp := oppRD / scale
	return expectedScore(mu, muOpp, phiOpp)
}

// InformationGain estimates how informative a match between two RDs would
// be: higher when both sides are still uncertain. Normalized to [0, 1].
func InformationGain(rd1, rd2 float64) float64 {
	n1 := (rd1 - MinRD) / (MaxRD - MinRD)
	n2 := (rd2 - MinRD) / (MaxRD - MinRD)
	if n1 < 0 {
		n1 = 0
	}
	if n2 < 0 {
		n2 = 0
	}
	return math.Sqrt(n1 * n2)
}

// MatchQuality estimates how balanced and uncertain a matchup is: close to 1
// when ratings are similar and the expected outcome is close to a coin flip.
func MatchQuality(rating1, rd1, rating2, rd2 float64) float64 {
	diff := math.Abs(rating1 - rating2)
	combinedRD := math.Sqrt(rd1*rd1 + rd2*rd2)
	if combinedRD == 0 {
		combinedRD = 1
	}
	expected := ExpectedScore(rating1, rd1, rating2, rd2)
	uncertainty := 1.0 - math.Abs(2.0*expected-1.0)
	penalty := math.Exp(-diff * diff / (2 * combinedRD * combinedRD))
	return uncertainty * penalty
}

// UpdatePairAudit carries the pre/post rating-deviation values and rating
// deltas for a single pairwise update, used to populate a RatingEvent.
type UpdatePairAudit struct {
	RDLeftBefore, RDLeftAfter   float64
	RDRightBefore, RDRightAfter float64
	DeltaLeft, DeltaRight       float64
}

// UpdatePair applies a single pairwise Glicko-2 update to both sides from
// their pre-match snapshots. result is interpreted from the left side's
// perspective: Win means left beat right. For a SKIP vote, callers should
// not invoke UpdatePair at all — the identity behavior is the caller's
// responsibility per spec (only counters change on SKIP).
func UpdatePair(left, right Rating, result Result) (newLeft, newRight Rating, audit UpdatePairAudit, err error) {
	newLeft, err = updateOne(left, right, result.score())
	if err != nil {
		return Rating{}, Rating{}, UpdatePairAudit{}, err
	}
	newRight, err = updateOne(right, left, 1.0-result.score())
	if err != nil {
		return Rating{}, Rating{}, UpdatePairAudit{}, err
	}
	audit = UpdatePairAudit{
		RDLeftBefore:  left.RD,
		RDLeftAfter:   newLeft.RD,
		RDRightBefore: right.RD,
		RDRightAfter:  newRight.RD,
		DeltaLeft:     newLeft.Value - left.Value,
		DeltaRight:    newRight.Value - right.Value,
	}
	return newLeft, newRight, audit, nil
}

// updateOne runs the full Glicko-2 update for one side against a single
// opponent snapshot and score s in [0, 1].
func updateOne(self, opp Rating, s float64) (Rating, error) {
	mu, phi := self.toInternal()
	muOpp, phiOpp := opp.toInternal()

	gOpp := g(phiOpp)
	e := expectedScore(mu, muOpp, phiOpp)
	v := 1.0 / (gOpp * gOpp * e * (1.0 - e))
	delta := v * gOpp * (s - e)

	sigmaNew, err := solveVolatility(self.Volatility, phi, v, delta)
	if err != nil {
		return Rating{}, err
	}

	phiStar := math.Sqrt(phi*phi + sigmaNew*sigmaNew)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muNew := mu + phiNew*phiNew*gOpp*(s-e)

	return fromInternal(muNew, phiNew, sigmaNew), nil
}

// solveVolatility finds sigma' by the Illinois (regula-falsi variant) root
// finder from the Glicko-2 paper, step 5.
func solveVolatility(sigma, phi, v, delta float64) (float64, error) {
	a := math.Log(sigma * sigma)
	phiSq := phi * phi

	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phiSq - v - ex)
		den := 2.0 * (phiSq + v + ex) * (phiSq + v + ex)
		return num/den - (x-a)/(tau*tau)
	}

	A := a
	var B float64
	if delta*delta > phiSq+v {
		B = math.Log(delta*delta - phiSq - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
			if k > 1e6 {
				return 0, ErrVolatilityDiverged
			}
		}
		B = a - k*tau
	}

	fA := f(A)
	fB := f(B)

	for i := 0; i < maxIter && math.Abs(B-A) > epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if math.IsNaN(fC) || math.IsInf(fC, 0) {
			return 0, ErrVolatilityDiverged
		}
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA = fA / 2.0
		}
		B, fB = C, fC
	}

	sigmaNew := math.Exp(A / 2.0)
	if math.IsNaN(sigmaNew) || math.IsInf(sigmaNew, 0) {
		return 0, ErrVolatilityDiverged
	}
	return sigmaNew, nil
}

package bdtree

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mquad/bd-tree/ratings"
	"github.com/mquad/bd-tree/tree"
	"golang.org/x/sync/errgroup"
)

// EvaluateOptions holds the parameters of an evaluation
type EvaluateOptions struct {
	// Length of the rankings measured
	Cutoff int
	// Rank at which half-life utility halves
	HalfLife float64
	// Number of users evaluated concurrently
	Threads int
}

// DefaultEvaluateOptions returns the options evaluations run with
// unless told otherwise.
func DefaultEvaluateOptions() EvaluateOptions {
	return EvaluateOptions{Cutoff: 10, HalfLife: 5, Threads: 1}
}

/*
Report holds the quality of the estimates a tree makes for a set of
test users. RMSE accounts every test rating; the ranking metrics are
averaged over the test users.
*/
type Report struct {
	Users     int
	Ratings   int
	RMSE      float64
	NDCG      float64
	Precision float64
	AP        float64
	HLU       float64
}

func (r *Report) String() string {
	return fmt.Sprintf("users: %d ratings: %d RMSE: %.4f NDCG: %.4f precision: %.4f AP: %.4f HLU: %.4f",
		r.Users, r.Ratings, r.RMSE, r.NDCG, r.Precision, r.AP, r.HLU)
}

type userResult struct {
	ratings   int
	sqErr     float64
	ndcg      float64
	precision float64
	ap        float64
	hlu       float64
}

/*
Evaluate takes a context, a tree, the query ratings test users answer
the tree's questions with, their held-out test ratings and options,
and returns a report on how well the leaf each user reaches estimates
their test ratings and ranks their relevant items. Rankings exclude
the items of the user's query ratings, and an item is relevant when
its test rating is at or above the tree's like threshold.

Evaluate returns an error if the context is done before every user is
evaluated.
*/
func Evaluate(ctx context.Context, t *tree.Tree, query, test []ratings.Triple, opts EvaluateOptions) (*Report, error) {
	if opts.Cutoff <= 0 || opts.HalfLife <= 1 {
		return nil, fmt.Errorf("evaluating with cutoff %d and half-life %v: %w", opts.Cutoff, opts.HalfLife, ErrConfig)
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	profiles := byUser(query)
	held := byUser(test)
	users := make([]int, 0, len(held))
	for u := range held {
		users = append(users, u)
	}
	sort.Ints(users)
	results := make([]userResult, len(users))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Threads)
	threshold := t.Info().LikeThreshold
	for i, u := range users {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			results[i] = evaluateUser(t, profiles[u], held[u], threshold, opts)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	r := &Report{Users: len(users)}
	var sqErr float64
	for _, res := range results {
		r.Ratings += res.ratings
		sqErr += res.sqErr
		r.NDCG += res.ndcg
		r.Precision += res.precision
		r.AP += res.ap
		r.HLU += res.hlu
	}
	if r.Ratings > 0 {
		r.RMSE = math.Sqrt(sqErr / float64(r.Ratings))
	}
	if r.Users > 0 {
		n := float64(r.Users)
		r.NDCG /= n
		r.Precision /= n
		r.AP /= n
		r.HLU /= n
	}
	return r, nil
}

func byUser(triples []ratings.Triple) map[int]map[int]float64 {
	m := make(map[int]map[int]float64)
	for _, tr := range triples {
		if m[tr.User] == nil {
			m[tr.User] = make(map[int]float64)
		}
		m[tr.User][tr.Item] = tr.Value
	}
	return m
}

func evaluateUser(t *tree.Tree, profile, test map[int]float64, threshold float64, opts EvaluateOptions) userResult {
	pred := t.Predict(profile).Prediction
	if pred == nil {
		pred = tree.NewPrediction(0, 0, nil, nil)
	}
	var res userResult
	for it, v := range test {
		d := pred.RatingOrEstimate(it) - v
		res.sqErr += d * d
		res.ratings++
	}
	exclude := make(map[int]bool, len(profile))
	for it := range profile {
		exclude[it] = true
	}
	ranking := pred.Top(opts.Cutoff, exclude)
	rels := make([]float64, len(ranking))
	for i, it := range ranking {
		rels[i] = test[it]
	}
	ideal := make([]float64, 0, len(test))
	for _, v := range test {
		ideal = append(ideal, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))

	if idcg := DCG(ideal, opts.Cutoff); idcg > 0 {
		res.ndcg = DCG(rels, opts.Cutoff) / idcg
	}
	if ihlu := halfLifeUtility(ideal, opts.Cutoff, opts.HalfLife); ihlu > 0 {
		res.hlu = halfLifeUtility(rels, opts.Cutoff, opts.HalfLife) / ihlu
	}
	var relevant int
	for _, v := range test {
		if v >= threshold {
			relevant++
		}
	}
	var hits int
	for i, rel := range rels {
		if rel >= threshold {
			hits++
			res.ap += float64(hits) / float64(i+1)
		}
	}
	if len(rels) > 0 {
		res.precision = float64(hits) / float64(len(rels))
	}
	if relevant > 0 {
		res.ap /= float64(relevant)
	}
	return res
}

// halfLifeUtility returns the utility of the relevances in ranking
// order at the cutoff, each position i (from 0) adding
// rel / 2^(i / (halfLife - 1)).
func halfLifeUtility(rels []float64, cutoff int, halfLife float64) float64 {
	var u float64
	for i, rel := range rels {
		if i >= cutoff {
			break
		}
		u += rel / math.Exp2(float64(i)/(halfLife-1))
	}
	return u
}

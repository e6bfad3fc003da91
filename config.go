package bdtree

import (
	"fmt"
	"io"
	"os"

	"github.com/mquad/bd-tree/ratings"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

const (
	// ErrorCriterionName selects the residual error objective
	ErrorCriterionName = "error"
	// RankingCriterionName selects the ranking quality objective
	RankingCriterionName = "ranking"
)

// Config holds the parameters trees are grown with
type Config struct {
	// Regularization of the user bias removed from ratings
	BuReg float64 `yaml:"bu_reg"`
	// Weight of the parent estimate when smoothing node estimates
	HSmooth float64 `yaml:"h_smooth"`
	// Maximum depth of a node, the root being at 0
	DepthMax int `yaml:"depth_max"`
	// Minimum number of ratings of a node to be split and
	// of each non-empty branch of a split
	RatingsMin int `yaml:"ratings_min"`
	// Minimum number of ratings an item needs among a node's
	// users to be asked at the node
	ItemRatingsMin int `yaml:"item_ratings_min"`
	// Minimum number of users of a node to be split
	MinUsers int `yaml:"min_users"`
	// Number of most popular items that may be asked, 0 for all
	TopPop int `yaml:"top_pop"`
	// Number of goroutines growing the tree
	NumThreads int `yaml:"num_threads"`
	// Pick the item to ask at random among the best RandCoeff
	Randomize bool `yaml:"randomize"`
	RandCoeff int  `yaml:"rand_coeff"`
	// Memoize partitions across nodes and builds
	CacheEnabled bool `yaml:"cache_enabled"`
	// Either "error" or "ranking"
	Criterion string `yaml:"criterion"`
	// Number of top ranked items accounted by ranking quality
	NDCGCutoff int           `yaml:"ndcg_cutoff"`
	Scale      ratings.Scale `yaml:"scale"`
}

// DefaultConfig returns the configuration trees are grown
// with unless told otherwise.
func DefaultConfig() Config {
	return Config{
		BuReg:          7,
		HSmooth:        100,
		DepthMax:       6,
		RatingsMin:     200000,
		ItemRatingsMin: 1,
		MinUsers:       2,
		TopPop:         0,
		NumThreads:     1,
		Randomize:      false,
		RandCoeff:      10,
		CacheEnabled:   true,
		Criterion:      ErrorCriterionName,
		NDCGCutoff:     10,
		Scale:          ratings.DefaultScale(),
	}
}

/*
Validate returns nil if the configuration can be used to grow
trees, or an error combining every problem found, each wrapping
ErrConfig.
*/
func (c Config) Validate() error {
	var err error
	check := func(ok bool, format string, a ...interface{}) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrConfig))
		}
	}
	check(c.NumThreads > 0, "num_threads must be positive, got %d", c.NumThreads)
	check(c.DepthMax > 0, "depth_max must be positive, got %d", c.DepthMax)
	check(c.BuReg >= 0, "bu_reg must not be negative, got %v", c.BuReg)
	check(c.HSmooth >= 0, "h_smooth must not be negative, got %v", c.HSmooth)
	check(c.RatingsMin >= 0, "ratings_min must not be negative, got %d", c.RatingsMin)
	check(c.ItemRatingsMin >= 0, "item_ratings_min must not be negative, got %d", c.ItemRatingsMin)
	check(c.MinUsers >= 0, "min_users must not be negative, got %d", c.MinUsers)
	check(c.TopPop >= 0, "top_pop must not be negative, got %d", c.TopPop)
	check(!c.Randomize || c.RandCoeff >= 1, "rand_coeff must be at least 1 when randomizing, got %d", c.RandCoeff)
	check(c.NDCGCutoff > 0, "ndcg_cutoff must be positive, got %d", c.NDCGCutoff)
	check(c.Criterion == ErrorCriterionName || c.Criterion == RankingCriterionName,
		"criterion must be %q or %q, got %q", ErrorCriterionName, RankingCriterionName, c.Criterion)
	if serr := c.Scale.Validate(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("%v: %w", serr, ErrConfig))
	}
	return err
}

// ReadConfig takes an io.Reader with a YAML document and returns
// the default configuration overridden by the keys on it.
func ReadConfig(r io.Reader) (Config, error) {
	c := DefaultConfig()
	data, err := io.ReadAll(r)
	if err != nil {
		return c, fmt.Errorf("reading configuration: %v", err)
	}
	if err = yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("parsing configuration: %v: %w", err, ErrConfig)
	}
	return c, nil
}

// LoadConfig reads the configuration from the YAML file at the given path
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("loading configuration from %s: %v", path, err)
	}
	defer f.Close()
	c, err := ReadConfig(f)
	if err != nil {
		return c, fmt.Errorf("loading configuration from %s: %w", path, err)
	}
	return c, nil
}

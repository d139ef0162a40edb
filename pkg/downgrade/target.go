package downgrade

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/legacypack/pkg/errors"
)

// Feature names a language capability that a target may lack.
type Feature string

// Features rewritten into the legacy dialect when the target lacks them.
const (
	ArrowFunctions       Feature = "arrow-functions"
	BlockScoping         Feature = "block-scoping"
	Destructuring        Feature = "destructuring"
	ForOf                Feature = "for-of"
	TemplateLiterals     Feature = "template-literals"
	Parameters           Feature = "parameters"
	Literals             Feature = "literals"
	OptionalCatchBinding Feature = "optional-catch-binding"
)

// Features that have no rewrite; using them on a target that lacks them
// fails the build.
const (
	Classes            Feature = "classes"
	Generators         Feature = "generators"
	AsyncFunctions     Feature = "async-functions"
	Spread             Feature = "spread"
	ComputedProperties Feature = "computed-properties"
	TaggedTemplates    Feature = "tagged-templates"
	NewTarget          Feature = "new-target"
	RegexpFlags        Feature = "regexp-flags"
	ExponentOperator   Feature = "exponent-operator"
	ObjectRestSpread   Feature = "object-rest-spread"
	RegexpDotAll       Feature = "regexp-dotall"
	OptionalChaining   Feature = "optional-chaining"
	NullishCoalescing  Feature = "nullish-coalescing"
	BigInt             Feature = "bigint"
	DynamicImport      Feature = "dynamic-import"
	ImportMeta         Feature = "import-meta"
	LogicalAssignment  Feature = "logical-assignment"
)

// featureSince records the ECMAScript edition that introduced a feature.
var featureSince = map[Feature]int{
	ArrowFunctions:       2015,
	BlockScoping:         2015,
	Destructuring:        2015,
	ForOf:                2015,
	TemplateLiterals:     2015,
	Parameters:           2015,
	Literals:             2015,
	Classes:              2015,
	Generators:           2015,
	Spread:               2015,
	ComputedProperties:   2015,
	TaggedTemplates:      2015,
	NewTarget:            2015,
	RegexpFlags:          2015,
	ExponentOperator:     2016,
	AsyncFunctions:       2017,
	ObjectRestSpread:     2018,
	RegexpDotAll:         2018,
	OptionalCatchBinding: 2019,
	OptionalChaining:     2020,
	NullishCoalescing:    2020,
	BigInt:               2020,
	DynamicImport:        2020,
	ImportMeta:           2020,
	LogicalAssignment:    2021,
}

// transformable lists the features the downgrader can rewrite.
var transformable = map[Feature]bool{
	ArrowFunctions:       true,
	BlockScoping:         true,
	Destructuring:        true,
	ForOf:                true,
	TemplateLiterals:     true,
	Parameters:           true,
	Literals:             true,
	OptionalCatchBinding: true,
}

// KnownFeature reports whether f is a feature name this package understands.
func KnownFeature(f Feature) bool {
	_, ok := featureSince[f]
	return ok
}

// AllFeatures returns every known feature name in sorted order.
func AllFeatures() []Feature {
	out := make([]Feature, 0, len(featureSince))
	for f := range featureSince {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transformable reports whether the downgrader rewrites f.
func Transformable(f Feature) bool { return transformable[f] }

// Target describes the legacy dialect to produce: an ECMAScript edition
// plus per-feature overrides.
type Target struct {
	// Level is the supported edition: 5 for ES5, otherwise the year
	// (2015, 2016, ...).
	Level int
	// Features overrides the level for individual features. A true value
	// means the engine supports the feature and it is left as written.
	Features map[Feature]bool
}

// ES5 is the default target.
var ES5 = Target{Level: 5}

// Supports reports whether the target engine understands f natively.
func (t Target) Supports(f Feature) bool {
	if v, ok := t.Features[f]; ok {
		return v
	}
	since, ok := featureSince[f]
	if !ok {
		return true
	}
	return t.Level >= since
}

// With returns a copy of t with the override for f set.
func (t Target) With(f Feature, supported bool) Target {
	out := Target{Level: t.Level, Features: make(map[Feature]bool, len(t.Features)+1)}
	for k, v := range t.Features {
		out.Features[k] = v
	}
	out.Features[f] = supported
	return out
}

// String renders the target as the engine level followed by the sorted
// overrides, e.g. "es5+arrow-functions".
func (t Target) String() string {
	var b strings.Builder
	if t.Level <= 5 {
		b.WriteString("es5")
	} else {
		b.WriteString("es" + strconv.Itoa(t.Level))
	}
	keys := make([]string, 0, len(t.Features))
	for f := range t.Features {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t.Features[Feature(k)] {
			b.WriteString("+" + k)
		} else {
			b.WriteString("-" + k)
		}
	}
	return b.String()
}

// engines maps engine names to the ECMAScript edition they fully support.
var engines = map[string]int{
	"es3":      5,
	"es5":      5,
	"ie9":      5,
	"ie10":     5,
	"ie11":     5,
	"node0.10": 5,
	"node0.12": 5,
	"node4":    5,
	"es6":      2015,
	"node6":    2015,
	"node8":    2017,
	"node10":   2018,
	"node12":   2019,
	"node14":   2020,
	"node16":   2021,
	"esnext":   9999,
}

// ParseEngine maps an engine name such as "es5", "es2017", "ie11" or
// "node6" to its edition level.
func ParseEngine(name string) (int, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if lvl, ok := engines[n]; ok {
		return lvl, nil
	}
	if rest, ok := strings.CutPrefix(n, "es"); ok {
		if year, err := strconv.Atoi(rest); err == nil && year >= 2015 && year <= 2100 {
			return year, nil
		}
	}
	return 0, errors.New(errors.ErrCodeInvalidConfig, "unknown engine %q", name)
}

// ParseTarget builds a target from an engine name and feature overrides.
func ParseTarget(engine string, overrides map[string]bool) (Target, error) {
	lvl, err := ParseEngine(engine)
	if err != nil {
		return Target{}, err
	}
	t := Target{Level: lvl}
	if len(overrides) == 0 {
		return t, nil
	}
	t.Features = make(map[Feature]bool, len(overrides))
	for name, v := range overrides {
		f := Feature(name)
		if !KnownFeature(f) {
			return Target{}, errors.New(errors.ErrCodeInvalidConfig, "unknown feature %q", name)
		}
		t.Features[f] = v
	}
	return t, nil
}

// Describe lists, for diagnostics, which features the target rewrites and
// which it rejects.
func (t Target) Describe() (rewritten, rejected []Feature) {
	for _, f := range AllFeatures() {
		if t.Supports(f) {
			continue
		}
		if Transformable(f) {
			rewritten = append(rewritten, f)
		} else {
			rejected = append(rejected, f)
		}
	}
	return rewritten, rejected
}

func (f Feature) String() string { return string(f) }

// GoString helps test failure output.
func (t Target) GoString() string { return fmt.Sprintf("downgrade.Target(%s)", t.String()) }

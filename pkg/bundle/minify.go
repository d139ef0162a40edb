package bundle

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/matzehuels/legacypack/pkg/downgrade"
	"github.com/matzehuels/legacypack/pkg/errors"
)

var esbuildTargets = map[int]api.Target{
	2015: api.ES2015,
	2016: api.ES2016,
	2017: api.ES2017,
	2018: api.ES2018,
	2019: api.ES2019,
	2020: api.ES2020,
	2021: api.ES2021,
	2022: api.ES2022,
}

// esbuildTarget maps the engine level so that minification never
// introduces syntax the target lacks.
func esbuildTarget(t downgrade.Target) api.Target {
	if t.Level <= 5 {
		return api.ES5
	}
	if et, ok := esbuildTargets[t.Level]; ok {
		return et
	}
	return api.ESNext
}

// Minify compacts code with esbuild, removing whitespace and simplifying
// syntax for the target.
func Minify(code []byte, t downgrade.Target) ([]byte, error) {
	result := api.Transform(string(code), api.TransformOptions{
		Loader:           api.LoaderJS,
		Target:           esbuildTarget(t),
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LegalComments:    api.LegalCommentsNone,
		Sourcefile:       "bundle.js",
	})
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return nil, errors.New(errors.ErrCodeSyntax, "minify: %s", strings.TrimSpace(strings.Join(msgs, "\n")))
	}
	return result.Code, nil
}

package modgraph_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/modgraph"
)

func ExampleBuild() {
	dir, err := os.MkdirTemp("", "modgraph-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	files := map[string]string{
		"main.js": "import { helper } from './util.js';\nconst Canvas = require('canvas');\nhelper(Canvas);\n",
		"util.js": "export function helper(c) { return c; }\n",
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			panic(err)
		}
	}

	entry := "main.js"
	cfg, err := config.Resolve(&config.File{
		Entry:     &entry,
		Externals: map[string]string{"canvas": "commonjs canvas"},
	}, dir)
	if err != nil {
		panic(err)
	}
	g, err := modgraph.Build(context.Background(), cfg, modgraph.Options{Logger: log.New(io.Discard)})
	if err != nil {
		panic(err)
	}

	fmt.Println("Entry:", g.Entry)
	fmt.Println("Order:", g.Order())
	fmt.Println("Externals:", g.ExternalNames())
	// Output:
	// Entry: ./main.js
	// Order: [./util.js ./main.js]
	// Externals: [canvas]
}

func ExampleGraph_Cycles() {
	dir, err := os.MkdirTemp("", "modgraph-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	files := map[string]string{
		"main.js": "import './a.js';\n",
		"a.js":    "import './b.js';\nexport var a = 1;\n",
		"b.js":    "import './a.js';\nexport var b = 2;\n",
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			panic(err)
		}
	}

	entry := "main.js"
	cfg, err := config.Resolve(&config.File{Entry: &entry}, dir)
	if err != nil {
		panic(err)
	}
	g, err := modgraph.Build(context.Background(), cfg, modgraph.Options{Logger: log.New(io.Discard)})
	if err != nil {
		panic(err)
	}

	// Each module is emitted once; the back edge b -> a is skipped.
	fmt.Println("Order:", g.Order())
	fmt.Println("Cycles:", g.Cycles())
	// Output:
	// Order: [./b.js ./a.js ./main.js]
	// Cycles: [[./a.js ./b.js]]
}

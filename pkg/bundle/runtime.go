package bundle

import (
	"strings"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/js"
)

// runtimeHead opens the artifact. The registry keeps one record per module
// key; a record is cached before its factory runs so that cyclic imports
// see the partially initialised exports, and dropped again if the factory
// throws.
const runtimeHead = `(function (root, modules) {
  var hasOwn = Object.prototype.hasOwnProperty;
  var cache = {};
`

const runtimeRegistry = `  function __require__(id) {
    var record = cache[id];
    if (record) {
      return record.exports;
    }
    record = cache[id] = {
      id: id,
      loaded: false,
      exports: {}
    };
    var failed = true;
    try {
      if (hasOwn.call(externals, id)) {
        record.exports = externals[id]();
      } else if (hasOwn.call(modules, id)) {
        modules[id].call(record.exports, record, record.exports, __require__);
      } else {
        throw new Error("Cannot find module '" + id + "'");
      }
      failed = false;
    } finally {
      if (failed) {
        delete cache[id];
      }
    }
    record.loaded = true;
    return record.exports;
  }
  __require__.r = function (exports) {
    Object.defineProperty(exports, "__esModule", {
      value: true
    });
  };
  __require__.d = function (exports, getters) {
    for (var name in getters) {
      if (hasOwn.call(getters, name) && !hasOwn.call(exports, name)) {
        Object.defineProperty(exports, name, {
          enumerable: true,
          get: getters[name]
        });
      }
    }
  };
  __require__.n = function (value) {
    return value && value.__esModule ? value : {
      "default": value
    };
  };
  __require__.a = function (exports, from) {
    for (var name in from) {
      if (hasOwn.call(from, name) && name !== "default" && !hasOwn.call(exports, name)) {
        (function (key) {
          Object.defineProperty(exports, key, {
            enumerable: true,
            get: function () {
              return from[key];
            }
          });
        })(name);
      }
    }
  };
`

const runtimeRoot = `typeof globalThis !== "undefined" ? globalThis : typeof window !== "undefined" ? window : typeof global !== "undefined" ? global : this`

// writeExternals writes the lazily evaluated external reference table.
func writeExternals(b *strings.Builder, keys []string, refs map[string]config.External) {
	if len(keys) == 0 {
		b.WriteString("  var externals = {};\n")
		return
	}
	b.WriteString("  var externals = {\n")
	for i, key := range keys {
		ext := refs[key]
		b.WriteString("    " + js.Quote(key) + ": function () {\n")
		b.WriteString("      return " + externalExpr(ext) + ";\n")
		b.WriteString("    }")
		if i < len(keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  };\n")
}

// externalExpr is the load-time lookup of an external: a host require call
// or a property path on the global object.
func externalExpr(ext config.External) string {
	if ext.Strategy == config.StrategyCommonJS {
		return "require(" + js.Quote(ext.Name) + ")"
	}
	return "root" + globalPath(ext.Name)
}

// globalPath turns "a.b" into `["a"]["b"]`.
func globalPath(name string) string {
	var b strings.Builder
	for _, seg := range strings.Split(name, ".") {
		b.WriteString("[" + js.Quote(seg) + "]")
	}
	return b.String()
}

// writeEntry requires the entry module and hands its exports to the host.
func writeEntry(b *strings.Builder, entry, library string) {
	b.WriteString("  var entry = __require__(" + js.Quote(entry) + ");\n")
	if library != "" {
		segs := strings.Split(library, ".")
		target := "root"
		for _, seg := range segs[:len(segs)-1] {
			target += "[" + js.Quote(seg) + "]"
			b.WriteString("  " + target + " = " + target + " || {};\n")
		}
		b.WriteString("  " + target + "[" + js.Quote(segs[len(segs)-1]) + "] = entry;\n")
	}
	b.WriteString("  if (typeof module === \"object\" && module && typeof module.exports === \"object\") {\n")
	b.WriteString("    module.exports = entry;\n")
	b.WriteString("  }\n")
}

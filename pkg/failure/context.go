// Package failure captures the diagnostic snapshot produced when a wrapped
// unit of work exhausts its retries.
package failure

import (
	"os"
	"os/user"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Origin identifies the wrapped unit of work. It is resolved once at wrap
// time, before any attempt runs, because call-site metadata is not reliable
// after the escalation path has started unwinding.
type Origin struct {
	// Function is the bare name of the wrapped function.
	Function string
	// Module is the logical grouping used for the report subject line:
	// the wrapped function's package name.
	Module string
}

// ResolveOrigin derives the Origin from a function value. Closures resolve
// to their enclosing function with the compiler's .funcN suffix, which is
// kept as-is.
func ResolveOrigin(fn any) Origin {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return Origin{Function: "unknown", Module: "unknown"}
	}

	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return Origin{Function: "unknown", Module: "unknown"}
	}

	return parseFuncName(rf.Name())
}

// parseFuncName splits a runtime function name such as
// "github.com/acme/etl/pkg/loader.(*Job).Run" into package and function.
func parseFuncName(full string) Origin {
	pkgPath := full
	fn := full
	if idx := strings.LastIndex(full, "/"); idx >= 0 {
		pkgPath = full[idx+1:]
		fn = full[idx+1:]
	}
	if idx := strings.Index(pkgPath, "."); idx >= 0 {
		return Origin{
			Module:   pkgPath[:idx],
			Function: strings.NewReplacer("(*", "", "(", "", ")", "").Replace(fn[idx+1:]),
		}
	}
	return Origin{Function: fn, Module: pkgPath}
}

// Context is the immutable failure snapshot. It is created exactly once per
// escalation and consumed by the report renderer.
type Context struct {
	Function  string
	Module    string
	Start     time.Time
	FailTime  time.Time
	Machine   string
	User      string
	Err       string
	Traceback string
}

// Capture builds a Context at the catch site. The stack trace must be taken
// here, synchronously, while the failing frames are still live.
func Capture(origin Origin, start time.Time, err error) Context {
	host, hostErr := os.Hostname()
	if hostErr != nil {
		host = "unknown"
	}

	errText := ""
	if err != nil {
		errText = err.Error()
	}

	return Context{
		Function:  origin.Function,
		Module:    origin.Module,
		Start:     start,
		FailTime:  time.Now(),
		Machine:   host,
		User:      currentUser(),
		Err:       errText,
		Traceback: string(debug.Stack()),
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	// user.Current can fail in minimal containers; fall back to the env.
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

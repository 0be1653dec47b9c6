package log

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Format turns a Record into a line of output.
type Format interface {
	Format(r *Record) []byte
}

type formatFunc func(*Record) []byte

func (f formatFunc) Format(r *Record) []byte { return f(r) }

var lvlColor = map[Lvl]int{
	LvlCrit:  35, // magenta
	LvlError: 31, // red
	LvlWarn:  33, // yellow
	LvlInfo:  32, // green
	LvlDebug: 36, // cyan
	LvlTrace: 90, // gray
}

// TerminalFormat renders a human-readable, optionally ANSI-colored line:
// "INFO[2026-07-29|12:00:00.000] message key=value key2=value2".
func TerminalFormat(color bool) Format {
	return formatFunc(func(r *Record) []byte {
		var b strings.Builder
		ts := r.Time.Format("2006-01-02|15:04:05.000")
		lvl := strings.ToUpper(r.Lvl.String())
		if color {
			fmt.Fprintf(&b, "\x1b[%dm%s\x1b[0m[%s] %s", lvlColor[r.Lvl], lvl, ts, r.Msg)
		} else {
			fmt.Fprintf(&b, "%s[%s] %s", lvl, ts, r.Msg)
		}
		for i := 0; i < len(r.Ctx); i += 2 {
			k, _ := r.Ctx[i].(string)
			v := r.Ctx[i+1]
			fmt.Fprintf(&b, " %s=%s", k, formatValue(v))
		}
		if r.Lvl == LvlCrit && r.Call.Frame().Function != "" {
			fmt.Fprintf(&b, " stack=%v", r.Call)
		}
		b.WriteByte('\n')
		return []byte(b.String())
	})
}

// LogfmtFormat renders key=value pairs, keys sorted, suitable for machine
// parsing: "t=... lvl=info msg=... key=value".
func LogfmtFormat() Format {
	return formatFunc(func(r *Record) []byte {
		keys := make([]string, 0, len(r.Ctx)/2)
		values := make(map[string]interface{}, len(r.Ctx)/2)
		for i := 0; i < len(r.Ctx); i += 2 {
			k, _ := r.Ctx[i].(string)
			keys = append(keys, k)
			values[k] = r.Ctx[i+1]
		}
		sort.Strings(keys)

		var b strings.Builder
		fmt.Fprintf(&b, "t=%s lvl=%s msg=%s", r.Time.Format("2006-01-02T15:04:05.000Z0700"), r.Lvl, strconv.Quote(r.Msg))
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, formatValue(values[k]))
		}
		b.WriteByte('\n')
		return []byte(b.String())
	})
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		if strings.ContainsAny(x, " =\"\t\n") {
			return strconv.Quote(x)
		}
		return x
	case error:
		return strconv.Quote(x.Error())
	case fmt.Stringer:
		return strconv.Quote(x.String())
	default:
		return fmt.Sprintf("%v", x)
	}
}

// StreamHandler writes formatted records to wr, one per Log call.
func StreamHandler(wr *os.File, fmtr Format) Handler {
	var mu sync.Mutex
	out := colorable.NewColorable(wr)
	return HandlerFunc(func(r *Record) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := out.Write(fmtr.Format(r))
		return err
	})
}

// LvlFilterHandler drops records below minLvl before passing them on.
func LvlFilterHandler(minLvl Lvl, h Handler) Handler {
	return HandlerFunc(func(r *Record) error {
		if r.Lvl > minLvl {
			return nil
		}
		return h.Log(r)
	})
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

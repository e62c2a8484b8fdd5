// Package nlog is the controller's leveled logger: timestamped,
// caller-annotated lines to stderr and/or a rotating file, cheap enough
// to call from the hot paths (overlay subscriber loops, heat recompute).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}

var (
	toStderr     bool
	alsoToStderr bool

	mu   sync.Mutex
	file *os.File
	role string
)

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of a file")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error in addition to a file")
}

// SetOutput directs file-backed logging at f; role is a short tag (e.g.
// the controller's cid) stamped into rotate headers.
func SetOutput(f *os.File, r string) {
	mu.Lock()
	file, role = f, r
	mu.Unlock()
}

func Infof(format string, args ...any)    { log(sevInfo, 1, format, args...) }
func Infoln(args ...any)                  { log(sevInfo, 1, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 1, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 1, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 1, format, args...) }
func Errorln(args ...any)                 { log(sevErr, 1, "", args...) }

func log(sev severity, depth int, format string, args ...any) {
	line := render(sev, depth+1, format, args...)

	mu.Lock()
	defer mu.Unlock()

	switch {
	case toStderr:
		os.Stderr.WriteString(line)
	case alsoToStderr || sev >= sevWarn:
		os.Stderr.WriteString(line)
		writeFile(line)
	default:
		writeFile(line)
	}
}

// under mu
func writeFile(line string) {
	var w io.Writer = os.Stdout
	if file != nil {
		w = file
	}
	io.WriteString(w, line)
}

func render(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 1); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if role != "" {
		b.WriteByte('[')
		b.WriteString(role)
		b.WriteString("] ")
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	return b.String()
}

func Flush() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Sync()
	}
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/ralph-jit/pkg/bytecode"
	"github.com/raymyers/ralph-jit/pkg/config"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// Frame of the method the repl builds up
const (
	replStack  = 16
	replLocals = 8
)

// session accumulates instructions into one method and prints the code
// each new instruction adds
type session struct {
	cfg  *config.Config
	out  io.Writer
	body []string
	last []string // listing of the previous compilation
}

func newSession(cfg *config.Config, out io.Writer) *session {
	return &session{cfg: cfg, out: out}
}

// handle processes one input line and reports whether the session ends
func (s *session) handle(line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case ".quit", ".exit":
		return true
	case ".reset":
		s.body, s.last = nil, nil
		return false
	case ".show":
		for _, l := range s.last {
			fmt.Fprintf(s.out, "  %s\n", l)
		}
		return false
	case ".help":
		fmt.Fprintln(s.out, "enter one instruction per line; .show .reset .quit")
		return false
	}

	body := append(append([]string(nil), s.body...), line)
	listing, err := s.compile(body)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return false
	}
	s.body = body
	n := 0
	for n < len(s.last) && n < len(listing) && s.last[n] == listing[n] {
		n++
	}
	for _, l := range listing[n:] {
		fmt.Fprintf(s.out, "  %s\n", l)
	}
	s.last = listing
	return false
}

func (s *session) compile(body []string) ([]string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, ".method repl stack=%d locals=%d\n", replStack, replLocals)
	for _, l := range body {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString(".end\n")
	methods, err := bytecode.Parse(sb.String())
	if err != nil {
		return nil, err
	}
	res, err := bytecode.Compile(methods[0], s.cfg)
	if err != nil {
		return nil, err
	}
	return x86.Strings(res.Code), nil
}

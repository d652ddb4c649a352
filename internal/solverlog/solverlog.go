// Package solverlog summarizes equilibrium solver logs.
//
// For every input file name.sp the log name.log is read. Each line that
// contains "finished" is excerpted together with the two lines after it; the
// case succeeded if such a line also contains "success".
package solverlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const separator = "============================================================="

type Case struct {
	Input    string
	Log      string
	Success  bool
	Excerpts []string
}

type Report struct {
	Cases []Case
}

// LogPath maps an input file to its log file.
func LogPath(input string) string {
	return strings.TrimSuffix(input, ".sp") + ".log"
}

// Scan reads the log of every input. A missing log is an error.
func Scan(inputs []string) (*Report, error) {
	rep := &Report{Cases: make([]Case, 0, len(inputs))}
	for _, in := range inputs {
		c, err := scanFile(in)
		if err != nil {
			return nil, err
		}
		rep.Cases = append(rep.Cases, c)
	}
	return rep, nil
}

func scanFile(input string) (Case, error) {
	c := Case{Input: input, Log: LogPath(input)}
	f, err := os.Open(c.Log)
	if err != nil {
		return c, fmt.Errorf("open solver log: %w", err)
	}
	defer f.Close()

	c.Success, c.Excerpts, err = ScanReader(f)
	if err != nil {
		return c, fmt.Errorf("read %s: %w", c.Log, err)
	}
	return c, nil
}

// ScanReader extracts the completion excerpts from one log.
func ScanReader(r io.Reader) (bool, []string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		success  bool
		excerpts []string
		pending  int
		current  []string
	)
	flush := func() {
		if current != nil {
			excerpts = append(excerpts, strings.Join(current, "\n"))
			current = nil
		}
	}
	for sc.Scan() {
		line := sc.Text()
		if pending > 0 {
			current = append(current, line)
			pending--
			if pending == 0 {
				flush()
			}
			continue
		}
		if strings.Contains(line, "finished") {
			if strings.Contains(line, "success") {
				success = true
			}
			current = []string{line}
			pending = 2
		}
	}
	flush()
	return success, excerpts, sc.Err()
}

// Successes lists the inputs whose runs succeeded.
func (r *Report) Successes() []string {
	var out []string
	for _, c := range r.Cases {
		if c.Success {
			out = append(out, c.Input)
		}
	}
	return out
}

// WriteTo writes the combined log.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var n int64
	bw := bufio.NewWriter(w)
	for _, c := range r.Cases {
		k, err := fmt.Fprintf(bw, "%s\n%s: \n", separator, c.Log)
		n += int64(k)
		if err != nil {
			return n, err
		}
		for _, ex := range c.Excerpts {
			k, err := fmt.Fprintf(bw, "%s\n\n", ex)
			n += int64(k)
			if err != nil {
				return n, err
			}
		}
	}
	return n, bw.Flush()
}

// WriteSuccesses writes one successful input per line.
func (r *Report) WriteSuccesses(w io.Writer) error {
	for _, in := range r.Successes() {
		if _, err := fmt.Fprintln(w, in); err != nil {
			return err
		}
	}
	return nil
}

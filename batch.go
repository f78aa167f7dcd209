package tracker

import (
	"bufio"
	"io"
	"strings"
)

// ParseBatchFile splits a batch input file into one argv per non-blank
// line, per spec.md §6's batch input mode: each line is a
// whitespace-separated argv for one tracee invocation, blank lines are
// ignored, and the trailing newline on the last token of a line is
// stripped (mirroring tracker.c's `strtok(str, " ")` + manual '\n' trim).
func ParseBatchFile(r io.Reader) ([][]string, error) {
	var batches [][]string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		batches = append(batches, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, newError(InvalidArgument, "cannot read batch file: %v", err)
	}

	return batches, nil
}

package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

var errChainBroken = errors.New("audit: chain broken")

// eachLine streams the raw JSONL lines of the log at path through fn,
// numbered from 1. The slice passed to fn is a private copy.
func eachLine(path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := append([]byte(nil), sc.Bytes()...)
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadAll decodes every entry in the log at path, in append order.
func ReadAll(path string) ([]Entry, error) {
	var out []Entry
	err := eachLine(path, func(n int, line []byte) error {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("audit: line %d: %w", n, err)
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Verify walks the log at path and validates the hash chain: the first
// entry must reference the genesis hash, every later entry the hash of
// the line before it. The result pinpoints the first broken link.
func Verify(path string) VerifyResult {
	var res VerifyResult
	want := GenesisHash

	err := eachLine(path, func(n int, line []byte) error {
		res.Lines = n

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			res.Error = fmt.Sprintf("parse error: %v", err)
			res.ErrorLine = n
			return errChainBroken
		}
		if entry.PrevHash != want {
			if n == 1 {
				res.Error = fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", entry.PrevHash)
			} else {
				res.Error = fmt.Sprintf("hash mismatch: expected %s, got %s", want, entry.PrevHash)
			}
			res.ErrorLine = n
			return errChainBroken
		}

		want = HashLine(line)
		return nil
	})

	switch {
	case err == nil:
		res.Valid = true
	case errors.Is(err, errChainBroken):
		// res already carries the broken-link detail.
	default:
		res.Error = err.Error()
	}
	return res
}

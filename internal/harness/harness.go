package harness

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

/*
Run executes the line protocol against tree.

	<n>
	insert <key> <value>
	delete <key> <value>
	find <key>

find prints the values stored under key in ascending order, space separated,
or null when there are none.
*/

var ErrProtocol = errors.New("harness: malformed input")

// MaxKeyLen bounds the string key of every command.
const MaxKeyLen = 64

type Result struct {
	Inserted   int
	Duplicates int
	Deleted    int
	Absent     int // deletes of keys that were not stored
	Finds      int
}

func Run(r io.Reader, w io.Writer, tree *Tree) (Result, error) {
	var res Result
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	out := bufio.NewWriter(w)
	defer out.Flush()

	next := func(what string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("%w: missing %s", ErrProtocol, what)
		}
		return sc.Text(), nil
	}
	nextInt := func(what string) (int32, error) {
		tok, err := next(what)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q: %v", ErrProtocol, what, tok, err)
		}
		return int32(v), nil
	}

	n, err := nextInt("operation count")
	if err != nil {
		return res, err
	}

	for i := int32(0); i < n; i++ {
		op, err := next("operation")
		if err != nil {
			return res, err
		}
		key, err := next("key")
		if err != nil {
			return res, err
		}
		if len(key) > MaxKeyLen {
			return res, fmt.Errorf("%w: key longer than %d bytes", ErrProtocol, MaxKeyLen)
		}

		switch op {
		case "insert":
			value, err := nextInt("value")
			if err != nil {
				return res, err
			}
			ok, err := tree.Insert(NewKey(key, value), value)
			if err != nil {
				return res, fmt.Errorf("insert %s %d: %w", key, value, err)
			}
			if ok {
				res.Inserted++
			} else {
				res.Duplicates++
			}

		case "delete":
			value, err := nextInt("value")
			if err != nil {
				return res, err
			}
			before := tree.GetSize()
			if err := tree.Remove(NewKey(key, value)); err != nil {
				return res, fmt.Errorf("delete %s %d: %w", key, value, err)
			}
			if tree.GetSize() < before {
				res.Deleted++
			} else {
				res.Absent++
			}

		case "find":
			values, err := tree.GetAllValue(RoughKey(key))
			if err != nil {
				return res, fmt.Errorf("find %s: %w", key, err)
			}
			res.Finds++
			if len(values) == 0 {
				fmt.Fprintln(out, "null")
				continue
			}
			parts := make([]string, len(values))
			for j, v := range values {
				parts[j] = strconv.FormatInt(int64(v), 10)
			}
			fmt.Fprintln(out, strings.Join(parts, " "))

		default:
			return res, fmt.Errorf("%w: unknown operation %q", ErrProtocol, op)
		}
	}
	return res, nil
}

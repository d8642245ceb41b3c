package object

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrCorruptCommit = errors.New("corrupt commit object")

// Signature is one "author" or "committer" line of a commit or tag:
// an identity plus the moment the action happened.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

// Commit is the parsed form of a commit object.
//
// Parents preserves on-disk order; Parents[0] is the first parent, which
// history walks follow for mainline traversal.
type Commit struct {
	ID        Hash
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Message   string
}

// Summary returns the first line of the commit message.
func (c *Commit) Summary() string {
	if i := strings.IndexByte(c.Message, '\n'); i >= 0 {
		return c.Message[:i]
	}
	return c.Message
}

// ParseCommit parses the raw bytes of a commit object. The id is recorded
// on the result for the caller's convenience and is not verified here.
func ParseCommit(id Hash, raw []byte) (*Commit, error) {
	c := &Commit{ID: id}

	rest := raw
	for len(rest) > 0 {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			return nil, fmt.Errorf("%w: unterminated header", ErrCorruptCommit)
		}
		line := rest[:nl]
		rest = rest[nl+1:]

		if len(line) == 0 {
			// Blank line separates headers from the message.
			c.Message = string(rest)
			break
		}

		sp := bytes.IndexByte(line, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: malformed header %q", ErrCorruptCommit, line)
		}
		key, val := string(line[:sp]), line[sp+1:]

		switch key {
		case "tree":
			h, err := ParseHash(string(val))
			if err != nil {
				return nil, fmt.Errorf("%w: bad tree id: %v", ErrCorruptCommit, err)
			}
			c.Tree = h
		case "parent":
			h, err := ParseHash(string(val))
			if err != nil {
				return nil, fmt.Errorf("%w: bad parent id: %v", ErrCorruptCommit, err)
			}
			c.Parents = append(c.Parents, h)
		case "author":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case "committer":
			sig, err := parseSignature(val)
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		default:
			// gpgsig, mergetag, encoding and friends are carried in the
			// object but not needed by any front-end; skip continuation
			// lines (they start with a space).
			for len(rest) > 0 && rest[0] == ' ' {
				nl = bytes.IndexByte(rest, '\n')
				if nl < 0 {
					return nil, fmt.Errorf("%w: unterminated header", ErrCorruptCommit)
				}
				rest = rest[nl+1:]
			}
		}
	}

	if c.Tree.IsZero() {
		return nil, fmt.Errorf("%w: missing tree header", ErrCorruptCommit)
	}
	return c, nil
}

// parseSignature parses "Name <email> unixtime tzoffset".
func parseSignature(val []byte) (Signature, error) {
	var sig Signature

	lt := bytes.IndexByte(val, '<')
	gt := bytes.IndexByte(val, '>')
	if lt < 0 || gt < lt {
		return sig, fmt.Errorf("%w: malformed signature %q", ErrCorruptCommit, val)
	}
	sig.Name = strings.TrimSpace(string(val[:lt]))
	sig.Email = string(val[lt+1 : gt])

	fields := strings.Fields(string(val[gt+1:]))
	if len(fields) < 1 {
		return sig, fmt.Errorf("%w: missing timestamp in %q", ErrCorruptCommit, val)
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return sig, fmt.Errorf("%w: bad timestamp: %v", ErrCorruptCommit, err)
	}

	loc := time.UTC
	if len(fields) >= 2 && len(fields[1]) == 5 {
		hours, herr := strconv.Atoi(fields[1][1:3])
		mins, merr := strconv.Atoi(fields[1][3:5])
		if herr == nil && merr == nil {
			offset := (hours*60 + mins) * 60
			if fields[1][0] == '-' {
				offset = -offset
			}
			loc = time.FixedZone(fields[1], offset)
		}
	}
	sig.When = time.Unix(secs, 0).In(loc)
	return sig, nil
}
